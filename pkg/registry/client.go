package registry

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"

	"github.com/fluxcd/regbrowser/pkg/throttle"
)

// DefaultPageSize is how many repositories to ask for per catalog
// page.
const DefaultPageSize = 100

// Client is a registry client bound to one registry and one set of
// credentials. It is an interface so we can wrap it in
// instrumentation, write fake implementations, and so on.
type Client interface {
	Ping(ctx context.Context) error
	AllRepositories(ctx context.Context, pageSize int) ([]string, error)
	Tags(ctx context.Context, repository string) ([]string, error)
	Manifest(ctx context.Context, repository, reference string) (*Manifest, error)
	BlobHead(ctx context.Context, repository, digest string) (BlobInfo, error)
	ImageInfo(ctx context.Context, repository, tag string) (*ImageInfo, error)
	DeleteManifest(ctx context.Context, repository, digest string) error
}

// ClientFactory supplies Client implementations for a set of
// credentials. This is an interface so we can provide fake
// implementations.
type ClientFactory interface {
	ClientFor(Credentials) (Client, error)
	Succeed(Credentials)
}

// Remote talks to a registry over HTTP. Every call except
// DeleteManifest goes through the throttler.
type Remote struct {
	creds     Credentials
	base      *url.URL
	client    *http.Client
	throttler *throttle.Throttler
	logger    log.Logger
}

// NewRemote builds a Remote. A nil transport means
// http.DefaultTransport; a nil throttler gets a default one.
func NewRemote(creds Credentials, tx http.RoundTripper, throttler *throttle.Throttler, logger log.Logger) (*Remote, error) {
	base, err := creds.BaseURL()
	if err != nil {
		return nil, err
	}
	if tx == nil {
		tx = http.DefaultTransport
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if throttler == nil {
		throttler = throttle.New(logger)
	}
	return &Remote{
		creds:     creds,
		base:      base,
		client:    &http.Client{Transport: tx},
		throttler: throttler,
		logger:    logger,
	}, nil
}

// AuthHeader returns the Authorization header value for the current
// credentials, if any.
func (r *Remote) AuthHeader() (string, bool) {
	return r.creds.AuthHeader()
}

// Response is a successful registry response, read in full.
type Response struct {
	StatusCode    int
	Header        http.Header
	ContentLength int64
	Body          []byte
	// JSON is true when the body is (or at least parses as) JSON.
	JSON bool
}

// Decode unmarshals a JSON body into v.
func (res *Response) Decode(v interface{}) error {
	if !res.JSON {
		return malformedError(errors.New("expected JSON, got " + strconv.Quote(contentType(res.Header))))
	}
	if err := json.Unmarshal(res.Body, v); err != nil {
		return malformedError(err)
	}
	return nil
}

// Text is the body as served.
func (res *Response) Text() string {
	return string(res.Body)
}

func contentType(h http.Header) string {
	mt, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

func isJSONType(mt string) bool {
	return mt == "application/json" || strings.HasSuffix(mt, "+json") ||
		mediaTypeIs(mt, manifestAccept...)
}

// Request performs one authenticated call against an endpoint
// (a path starting /v2/). It does not go through the throttler.
// Credentials are only sent to the registry's own host.
func (r *Remote) Request(ctx context.Context, method, endpoint string, header http.Header) (*Response, error) {
	u, err := r.base.Parse(endpoint)
	if err != nil {
		return nil, configurationError(errors.Wrapf(err, "building URL for %s", endpoint))
	}
	req, err := http.NewRequest(method, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	for k, vs := range header {
		req.Header[k] = vs
	}
	if auth, ok := r.AuthHeader(); ok && u.Host == r.base.Host {
		req.Header.Set("Authorization", auth)
	}

	res, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, endpoint)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, statusError(method, endpoint, res)
	}

	body, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading response to %s %s", method, endpoint)
	}
	out := &Response{
		StatusCode:    res.StatusCode,
		Header:        res.Header,
		ContentLength: res.ContentLength,
		Body:          body,
	}
	// Registries occasionally mislabel content, so anything that
	// parses as JSON is treated as JSON.
	out.JSON = len(body) > 0 && (isJSONType(contentType(res.Header)) || json.Valid(body))
	return out, nil
}

func (r *Remote) throttled(ctx context.Context, method, endpoint string, header http.Header) (*Response, error) {
	var res *Response
	err := r.throttler.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = r.Request(ctx, method, endpoint, header)
		return err
	})
	return res, err
}

// Ping checks the registry answers the v2 API with our credentials.
func (r *Remote) Ping(ctx context.Context) error {
	_, err := r.throttled(ctx, http.MethodGet, "/v2/", nil)
	return err
}

// Catalog fetches one page of repository names, starting after last.
func (r *Remote) Catalog(ctx context.Context, pageSize int, last string) ([]string, error) {
	q := url.Values{}
	q.Set("n", strconv.Itoa(pageSize))
	if last != "" {
		q.Set("last", last)
	}
	res, err := r.throttled(ctx, http.MethodGet, "/v2/_catalog?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var page struct {
		Repositories []string `json:"repositories"`
	}
	if err := res.Decode(&page); err != nil {
		return nil, err
	}
	return page.Repositories, nil
}

// AllRepositories pages through the catalog. A page shorter than
// pageSize is the last one.
func (r *Remote) AllRepositories(ctx context.Context, pageSize int) ([]string, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	all := []string{}
	last := ""
	for {
		page, err := r.Catalog(ctx, pageSize, last)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) != pageSize {
			return all, nil
		}
		last = page[len(page)-1]
	}
}

// Tags lists the tags of a repository, following Link headers when
// the registry paginates them. A link to another host is an error; a
// link back to a page already fetched ends the listing.
func (r *Remote) Tags(ctx context.Context, repository string) ([]string, error) {
	tags := []string{}
	endpoint := "/v2/" + repository + "/tags/list"
	seen := map[string]bool{}
	for endpoint != "" {
		u, err := r.base.Parse(endpoint)
		if err != nil {
			return nil, malformedError(errors.Wrapf(err, "following tags link %q", endpoint))
		}
		if u.Host != r.base.Host {
			return nil, malformedError(errors.Errorf("tags link %q points away from %s", endpoint, r.base.Host))
		}
		if seen[u.RequestURI()] {
			r.logger.Log("warn", "registry repeated a tags page link", "repository", repository, "link", endpoint)
			break
		}
		seen[u.RequestURI()] = true

		res, err := r.throttled(ctx, http.MethodGet, u.RequestURI(), nil)
		if err != nil {
			return nil, err
		}
		var list struct {
			Name string   `json:"name"`
			Tags []string `json:"tags"`
		}
		if err := res.Decode(&list); err != nil {
			return nil, err
		}
		tags = append(tags, list.Tags...)
		endpoint = nextLink(res.Header)
	}
	return tags, nil
}

// nextLink extracts the target of a `Link: <...>; rel="next"` header.
func nextLink(h http.Header) string {
	for _, link := range h["Link"] {
		for _, part := range strings.Split(link, ",") {
			fields := strings.Split(part, ";")
			if len(fields) < 2 {
				continue
			}
			target := strings.TrimSpace(fields[0])
			if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
				continue
			}
			for _, param := range fields[1:] {
				if strings.Replace(strings.TrimSpace(param), " ", "", -1) == `rel="next"` {
					return strings.Trim(target, "<>")
				}
			}
		}
	}
	return ""
}

// Manifest fetches the manifest for a tag or digest.
func (r *Remote) Manifest(ctx context.Context, repository, reference string) (*Manifest, error) {
	header := http.Header{}
	header.Set("Accept", strings.Join(manifestAccept, ", "))
	res, err := r.throttled(ctx, http.MethodGet, "/v2/"+repository+"/manifests/"+reference, header)
	if err != nil {
		return nil, err
	}
	if !res.JSON {
		return nil, malformedError(errors.Errorf("manifest for %s:%s is not JSON", repository, reference))
	}
	m, err := parseManifest(res.Body)
	if err != nil {
		return nil, err
	}
	m.Digest = res.Header.Get("Docker-Content-Digest")
	if m.MediaType == "" {
		m.MediaType = contentType(res.Header)
	}
	return m, nil
}

func checkDigest(d string) error {
	if _, err := digest.Parse(d); err != nil {
		return invalidDigestError(d, err)
	}
	return nil
}

// Blob fetches a blob by digest.
func (r *Remote) Blob(ctx context.Context, repository, dgst string) ([]byte, error) {
	if err := checkDigest(dgst); err != nil {
		return nil, err
	}
	res, err := r.throttled(ctx, http.MethodGet, "/v2/"+repository+"/blobs/"+dgst, nil)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// BlobInfo is what a HEAD on a blob tells us.
type BlobInfo struct {
	Digest      string `json:"digest"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType,omitempty"`
}

// BlobHead probes a blob without downloading it.
func (r *Remote) BlobHead(ctx context.Context, repository, dgst string) (BlobInfo, error) {
	if err := checkDigest(dgst); err != nil {
		return BlobInfo{}, err
	}
	res, err := r.throttled(ctx, http.MethodHead, "/v2/"+repository+"/blobs/"+dgst, nil)
	if err != nil {
		return BlobInfo{}, err
	}
	info := BlobInfo{
		Digest:      res.Header.Get("Docker-Content-Digest"),
		ContentType: res.Header.Get("Content-Type"),
	}
	if info.Digest == "" {
		info.Digest = dgst
	}
	if res.ContentLength >= 0 {
		info.Size = res.ContentLength
	} else if n, err := strconv.ParseInt(res.Header.Get("Content-Length"), 10, 64); err == nil {
		info.Size = n
	}
	return info, nil
}

// ImageConfig fetches and decodes an image config blob.
func (r *Remote) ImageConfig(ctx context.Context, repository, dgst string) (*ImageConfig, error) {
	body, err := r.Blob(ctx, repository, dgst)
	if err != nil {
		return nil, err
	}
	var config ImageConfig
	if err := json.Unmarshal(body, &config); err != nil {
		return nil, malformedError(errors.Wrapf(err, "config blob %s", dgst))
	}
	return &config, nil
}

// DeleteManifest deletes a manifest by digest. It is a single,
// user-initiated call, so it skips the throttler.
func (r *Remote) DeleteManifest(ctx context.Context, repository, dgst string) error {
	if err := checkDigest(dgst); err != nil {
		return err
	}
	_, err := r.Request(ctx, http.MethodDelete, "/v2/"+repository+"/manifests/"+dgst, nil)
	return err
}
