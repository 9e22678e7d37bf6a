// Package graphdb exports a model into Neo4j as a property graph:
// Metabolite, Reaction and Pathway nodes joined by CONSUMES, PRODUCES,
// CONTAINS and FOLLOWS relationships. Nodes are keyed by model and
// identifier, so exporting twice updates in place.
package graphdb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ajitpratap0/pathcurate/internal/classifier"
	"github.com/ajitpratap0/pathcurate/internal/models"
)

// Config holds connection settings.
type Config struct {
	URI      string
	User     string
	Password string
	Database string
	Timeout  time.Duration
}

// Client is a connected Neo4j driver.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// Connect opens a driver and verifies connectivity.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j: uri is required")
	}
	if cfg.User == "" {
		cfg.User = "neo4j"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4j.Config) {
		c.SocketConnectTimeout = cfg.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}
	vctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}
	return &Client{driver: driver, database: cfg.Database, logger: logger}, nil
}

// Close releases the driver.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.driver == nil {
		return nil
	}
	err := c.driver.Close(ctx)
	c.driver = nil
	return err
}

// Statement is one parameterized Cypher statement.
type Statement struct {
	Cypher string
	Params map[string]any
}

// Graph is the node and relationship rows of one model.
type Graph struct {
	ModelID     string
	Metabolites []map[string]any
	Reactions   []map[string]any
	Pathways    []map[string]any
	Consumes    []map[string]any
	Produces    []map[string]any
	Contains    []map[string]any
	Follows     []map[string]any
}

// Stats counts what an export wrote.
type Stats struct {
	Nodes         int `json:"nodes"`
	Relationships int `json:"relationships"`
}

// BuildGraph flattens m into rows. A reversible reaction both consumes and
// produces each participant; the rows record the signed coefficient.
func BuildGraph(m *models.Model) *Graph {
	g := &Graph{ModelID: m.ID}
	cls := classifier.NewClassifier(nil)
	for _, met := range m.Metabolites() {
		g.Metabolites = append(g.Metabolites, map[string]any{
			"model":       m.ID,
			"id":          met.ID,
			"name":        met.Name,
			"formula":     met.Formula,
			"charge":      int64(met.Charge),
			"compartment": met.Compartment,
			"xrefs":       xrefStrings(met.XRefs),
		})
	}
	for _, r := range m.Reactions() {
		g.Reactions = append(g.Reactions, map[string]any{
			"model":       m.ID,
			"id":          r.ID,
			"name":        r.Name,
			"kind":        string(cls.Classify(r, m)),
			"lower_bound": r.LowerBound,
			"upper_bound": r.UpperBound,
			"direction":   string(r.Direction),
			"genes":       append([]string{}, r.Genes...),
			"gene_rule":   r.GeneRule,
			"equation":    r.Equation(),
		})
		for _, part := range r.Stoichiometry {
			row := map[string]any{
				"model":       m.ID,
				"reaction":    r.ID,
				"metabolite":  part.MetaboliteID,
				"coefficient": part.Coefficient,
			}
			if part.Coefficient < 0 {
				g.Consumes = append(g.Consumes, row)
			} else {
				g.Produces = append(g.Produces, row)
			}
		}
	}
	for _, p := range m.Pathways() {
		g.Pathways = append(g.Pathways, map[string]any{
			"model": m.ID,
			"id":    p.ID,
			"name":  p.Name,
			"xrefs": xrefStrings(p.XRefs),
		})
		for i, id := range p.Members {
			if _, ok := m.Reaction(id); !ok {
				continue
			}
			g.Contains = append(g.Contains, map[string]any{
				"model": m.ID, "pathway": p.ID, "reaction": id, "position": int64(i),
			})
		}
		for _, e := range p.Edges() {
			g.Follows = append(g.Follows, map[string]any{
				"model": m.ID, "pathway": p.ID, "from": e.From, "to": e.To,
			})
		}
	}
	return g
}

func xrefStrings(x models.XRefs) []string {
	pairs := x.Pairs()
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.String())
	}
	return out
}

// Schema is the constraint set the export relies on.
var Schema = []string{
	`CREATE CONSTRAINT metabolite_key IF NOT EXISTS FOR (n:Metabolite) REQUIRE (n.model, n.id) IS UNIQUE`,
	`CREATE CONSTRAINT reaction_key IF NOT EXISTS FOR (n:Reaction) REQUIRE (n.model, n.id) IS UNIQUE`,
	`CREATE CONSTRAINT pathway_key IF NOT EXISTS FOR (n:Pathway) REQUIRE (n.model, n.id) IS UNIQUE`,
}

// Statements returns the write statements for g in execution order:
// stale relationships of the model are cleared first, then nodes and
// relationships are merged. Empty row sets produce no statement.
func Statements(g *Graph) []Statement {
	out := []Statement{{
		Cypher: `
MATCH (n {model: $model})-[r]->()
WHERE n:Reaction OR n:Pathway
DELETE r
`,
		Params: map[string]any{"model": g.ModelID},
	}}
	add := func(cypher string, rows []map[string]any) {
		if len(rows) == 0 {
			return
		}
		out = append(out, Statement{Cypher: cypher, Params: map[string]any{"rows": rows}})
	}
	add(`
UNWIND $rows AS row
MERGE (n:Metabolite {model: row.model, id: row.id})
SET n += row
`, g.Metabolites)
	add(`
UNWIND $rows AS row
MERGE (n:Reaction {model: row.model, id: row.id})
SET n += row
`, g.Reactions)
	add(`
UNWIND $rows AS row
MERGE (n:Pathway {model: row.model, id: row.id})
SET n += row
`, g.Pathways)
	add(`
UNWIND $rows AS row
MATCH (r:Reaction {model: row.model, id: row.reaction})
MATCH (m:Metabolite {model: row.model, id: row.metabolite})
MERGE (r)-[e:CONSUMES]->(m)
SET e.coefficient = row.coefficient
`, g.Consumes)
	add(`
UNWIND $rows AS row
MATCH (r:Reaction {model: row.model, id: row.reaction})
MATCH (m:Metabolite {model: row.model, id: row.metabolite})
MERGE (r)-[e:PRODUCES]->(m)
SET e.coefficient = row.coefficient
`, g.Produces)
	add(`
UNWIND $rows AS row
MATCH (p:Pathway {model: row.model, id: row.pathway})
MATCH (r:Reaction {model: row.model, id: row.reaction})
MERGE (p)-[e:CONTAINS]->(r)
SET e.position = row.position
`, g.Contains)
	add(`
UNWIND $rows AS row
MATCH (a:Reaction {model: row.model, id: row.from})
MATCH (b:Reaction {model: row.model, id: row.to})
MERGE (a)-[e:FOLLOWS {pathway: row.pathway}]->(b)
`, g.Follows)
	return out
}

// Export writes m in one transaction. Schema creation is best-effort.
func (c *Client) Export(ctx context.Context, m *models.Model) (Stats, error) {
	g := BuildGraph(m)
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.database,
	})
	defer session.Close(ctx)

	for _, q := range Schema {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			c.logger.Warn("neo4j schema init failed (continuing)", "error", err)
			continue
		}
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, st := range Statements(g) {
			res, err := tx.Run(ctx, st.Cypher, st.Params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("neo4j export %s: %w", m.ID, err)
	}
	stats := Stats{
		Nodes:         len(g.Metabolites) + len(g.Reactions) + len(g.Pathways),
		Relationships: len(g.Consumes) + len(g.Produces) + len(g.Contains) + len(g.Follows),
	}
	c.logger.Info("model exported to neo4j", "model", m.ID, "nodes", stats.Nodes, "relationships", stats.Relationships)
	return stats, nil
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}
