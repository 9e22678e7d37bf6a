package retrieval

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ajitpratap0/pathcurate/internal/metrics"
)

// maxRecordBytes bounds a single fetched record.
const maxRecordBytes = 32 << 20

// Endpoints are the base URLs of the remote services.
type Endpoints struct {
	BioCyc    string
	PlantCyc  string
	KEGG      string
	BiGG      string
	BiGGModel string
}

// DefaultEndpoints are the public services.
var DefaultEndpoints = Endpoints{
	BioCyc:    "https://websvc.biocyc.org",
	PlantCyc:  "https://pmn.plantcyc.org",
	KEGG:      "https://rest.kegg.jp",
	BiGG:      "http://bigg.ucsd.edu/api/v2",
	BiGGModel: "universal",
}

// Credentials authenticate against BioCyc. Empty credentials skip login.
type Credentials struct {
	User     string
	Password string
}

// HTTPFetcher retrieves records from the public web services.
type HTTPFetcher struct {
	endpoints Endpoints
	creds     Credentials
	client    *http.Client
	logger    *slog.Logger

	loginOnce sync.Once
	loginErr  error

	mu       sync.Mutex
	releases map[Family]string
}

// NewHTTPFetcher creates a fetcher. Zero fields of endpoints fall back to
// DefaultEndpoints.
func NewHTTPFetcher(endpoints Endpoints, creds Credentials, timeout time.Duration, logger *slog.Logger) (*HTTPFetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	if endpoints.BioCyc == "" {
		endpoints.BioCyc = DefaultEndpoints.BioCyc
	}
	if endpoints.PlantCyc == "" {
		endpoints.PlantCyc = DefaultEndpoints.PlantCyc
	}
	if endpoints.KEGG == "" {
		endpoints.KEGG = DefaultEndpoints.KEGG
	}
	if endpoints.BiGG == "" {
		endpoints.BiGG = DefaultEndpoints.BiGG
	}
	if endpoints.BiGGModel == "" {
		endpoints.BiGGModel = DefaultEndpoints.BiGGModel
	}
	return &HTTPFetcher{
		endpoints: endpoints,
		creds:     creds,
		client:    &http.Client{Timeout: timeout, Jar: jar},
		logger:    logger,
		releases:  make(map[Family]string),
	}, nil
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, identifier, database string) (Payload, error) {
	metrics.Inc(metrics.FetchTotal)
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Payload{}, fmt.Errorf("fetching: empty identifier")
	}
	switch FamilyOf(database) {
	case FamilyKEGG:
		data, err := f.get(ctx, f.endpoints.KEGG+"/get/"+url.PathEscape(identifier))
		if err != nil {
			return Payload{}, fmt.Errorf("fetching KEGG %s: %w", identifier, err)
		}
		return Payload{Data: data, Ext: "txt", Database: database, Version: f.serviceRelease(ctx, FamilyKEGG)}, nil
	case FamilyBiGG:
		return f.fetchBiGG(ctx, identifier, database)
	case FamilyPlantCyc:
		return f.fetchCyc(ctx, f.endpoints.PlantCyc, identifier, database)
	default:
		if err := f.login(ctx); err != nil {
			return Payload{}, err
		}
		return f.fetchCyc(ctx, f.endpoints.BioCyc, identifier, database)
	}
}

func (f *HTTPFetcher) fetchCyc(ctx context.Context, base, identifier, database string) (Payload, error) {
	u := fmt.Sprintf("%s/getxml?id=%s:%s&detail=full", base, url.QueryEscape(database), url.QueryEscape(identifier))
	data, err := f.get(ctx, u)
	if err != nil {
		return Payload{}, fmt.Errorf("fetching %s:%s: %w", database, identifier, err)
	}
	if bytes.Contains(data, []byte("<num_results>0</num_results>")) {
		return Payload{}, fmt.Errorf("fetching %s:%s: %w", database, identifier, ErrNotFound)
	}
	return Payload{Data: data, Ext: "xml", Database: database, Version: cycRelease(data)}, nil
}

// fetchBiGG tries the reaction namespace first, then metabolites.
func (f *HTTPFetcher) fetchBiGG(ctx context.Context, identifier, database string) (Payload, error) {
	for _, kind := range []string{"reactions", "metabolites"} {
		u := fmt.Sprintf("%s/models/%s/%s/%s", f.endpoints.BiGG, url.PathEscape(f.endpoints.BiGGModel), kind, url.PathEscape(identifier))
		data, err := f.get(ctx, u)
		if err == nil {
			return Payload{Data: data, Ext: "json", Database: database, Version: f.serviceRelease(ctx, FamilyBiGG)}, nil
		}
		if !isNotFound(err) {
			return Payload{}, fmt.Errorf("fetching BiGG %s: %w", identifier, err)
		}
		f.logger.Debug("not found in BiGG namespace", "identifier", identifier, "kind", kind)
	}
	return Payload{}, fmt.Errorf("fetching BiGG %s: %w", identifier, ErrNotFound)
}

// serviceRelease asks KEGG or BiGG for its current release. The answer is
// kept for the lifetime of the fetcher; failures leave the release empty.
func (f *HTTPFetcher) serviceRelease(ctx context.Context, family Family) string {
	f.mu.Lock()
	rel, ok := f.releases[family]
	f.mu.Unlock()
	if ok {
		return rel
	}

	var u string
	switch family {
	case FamilyKEGG:
		u = f.endpoints.KEGG + "/info/kegg"
	case FamilyBiGG:
		u = f.endpoints.BiGG + "/database_version"
	default:
		return ""
	}
	data, err := f.get(ctx, u)
	if err != nil {
		f.logger.Warn("could not determine database release", "family", family, "error", err)
		return ""
	}
	if family == FamilyKEGG {
		rel = keggRelease(data)
	} else {
		rel = gjson.GetBytes(data, "bigg_models_version").String()
	}
	if rel == "" {
		f.logger.Warn("database release missing from response", "family", family)
	}

	f.mu.Lock()
	f.releases[family] = rel
	f.mu.Unlock()
	return rel
}

// keggRelease reads "Release 117.0+/01-21, Jan 26" from the second line of
// the info/kegg answer.
func keggRelease(data []byte) string {
	lines := strings.SplitN(string(data), "\n", 3)
	if len(lines) < 2 {
		return ""
	}
	_, rel, ok := strings.Cut(lines[1], "Release ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(rel)
}

var pgdbVersion = regexp.MustCompile(`<PGDB\b[^>]*\sversion="([^"]+)"`)

// cycRelease reads the PGDB version from the metadata block of a getxml
// answer.
func cycRelease(data []byte) string {
	if m := pgdbVersion.FindSubmatch(data); m != nil {
		return string(m[1])
	}
	return ""
}

// login posts the BioCyc credentials once; the session cookie stays in the
// client's jar.
func (f *HTTPFetcher) login(ctx context.Context) error {
	if f.creds.User == "" {
		return nil
	}
	f.loginOnce.Do(func() {
		form := url.Values{"email": {f.creds.User}, "password": {f.creds.Password}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoints.BioCyc+"/credentials/login/", strings.NewReader(form.Encode()))
		if err != nil {
			f.loginErr = fmt.Errorf("creating login request: %w", err)
			return
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err := f.client.Do(req)
		if err != nil {
			f.loginErr = fmt.Errorf("logging in to BioCyc: %w", err)
			return
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode >= 400 {
			f.loginErr = fmt.Errorf("BioCyc login returned %d", resp.StatusCode)
			return
		}
		f.logger.Info("logged in to BioCyc", "user", f.creds.User)
	})
	return f.loginErr
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.code == http.StatusNotFound
}

func (f *HTTPFetcher) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	f.logger.Debug("fetched", "url", u, "bytes", len(data))
	return data, nil
}
