// Package discovery lists the entities an upstream API exposes,
// fetches their per-entity metadata, and applies include/exclude
// filtering. Results are cached so repeated runs within the TTL do not
// hammer the metadata endpoints.
package discovery

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/comet/pkg/cache"
	"github.com/ajitpratap0/comet/pkg/clients"
	"github.com/ajitpratap0/comet/pkg/config"
	"github.com/ajitpratap0/comet/pkg/errors"
	"github.com/ajitpratap0/comet/pkg/json"
	"github.com/ajitpratap0/comet/pkg/models"
	"github.com/ajitpratap0/comet/pkg/paginate"
	"github.com/ajitpratap0/comet/pkg/schema"
)

const (
	entityNamespace     = "entities"
	descriptorNamespace = "descriptors"

	entityListKey = "_all"
)

// Discoverer resolves the upstream entity catalog.
type Discoverer struct {
	client *clients.HTTPClient
	cache  *cache.Manager
	cfg    *config.Config
	logger *zap.Logger
}

// NewDiscoverer wires a discoverer with its HTTP client and cache.
func NewDiscoverer(client *clients.HTTPClient, cacheManager *cache.Manager, cfg *config.Config, logger *zap.Logger) *Discoverer {
	return &Discoverer{
		client: client,
		cache:  cacheManager,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "discovery")),
	}
}

// DiscoverEntities returns the mapping of entity name to endpoint URL
// from the upstream listing endpoint, served from cache within the TTL.
// An unreachable endpoint is a discovery error; an empty catalog is a
// valid result.
func (d *Discoverer) DiscoverEntities(ctx context.Context) (map[string]string, error) {
	ns := d.cache.Namespace(entityNamespace)
	if cached, ok := ns.Get(entityListKey); ok {
		return cached.(map[string]string), nil
	}

	body, err := d.fetch(ctx, d.cfg.API.BaseURL, "")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDiscovery, "entity listing endpoint unreachable").
			WithHint("check base_url and network connectivity")
	}

	entities := make(map[string]string)
	if err := json.Unmarshal(body, &entities); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDiscovery, "entity listing response is not valid JSON")
	}

	d.logger.Info("discovered entities", zap.Int("count", len(entities)))
	ns.Set(entityListKey, entities)
	return entities, nil
}

// describeResponse mirrors the upstream describe endpoint body.
type describeResponse struct {
	Fields     map[string]describeField `json:"fields"`
	Parameters []string                 `json:"parameters"`
}

type describeField struct {
	Type      string `json:"type"`
	Format    string `json:"format"`
	Required  bool   `json:"required"`
	Nullable  bool   `json:"nullable"`
	MaxLength int    `json:"max_length"`
}

// DescribeEntity fetches one entity's field metadata. A 404 means the
// entity has no metadata and returns (nil, nil); any other failure,
// including a malformed body, is fatal for the entity.
func (d *Discoverer) DescribeEntity(ctx context.Context, name string) (*models.EntityDescriptor, error) {
	ns := d.cache.Namespace(descriptorNamespace)
	if cached, ok := ns.Get(name); ok {
		return cached.(*models.EntityDescriptor), nil
	}

	entities, err := d.DiscoverEntities(ctx)
	if err != nil {
		return nil, err
	}
	endpoint, ok := entities[name]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeDiscovery, "unknown entity %q", name).
			WithEntity(name).
			WithHint("run discover to list available entities")
	}

	body, err := d.fetch(ctx, describeURL(endpoint), name)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			d.logger.Debug("entity has no metadata", zap.String("entity", name))
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrorTypeDiscovery, "describe request failed").
			WithEntity(name)
	}

	var resp describeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDiscovery, "describe response is not valid JSON").
			WithEntity(name)
	}

	descriptor := buildDescriptor(name, endpoint, &resp)
	d.inferFormats(ctx, descriptor)
	ns.Set(name, descriptor)
	return descriptor, nil
}

// inferFormats fills missing time formats from one sample row. Declared
// metadata always wins; only string fields without a format are
// inspected, and a failed sample fetch leaves the descriptor as-is.
func (d *Discoverer) inferFormats(ctx context.Context, descriptor *models.EntityDescriptor) {
	candidates := false
	for _, f := range descriptor.Fields {
		if needsFormatInference(f) {
			candidates = true
			break
		}
	}
	if !candidates {
		return
	}

	row, err := d.sampleRow(ctx, descriptor.Endpoint, descriptor.Name)
	if err != nil {
		d.logger.Debug("sample fetch for format inference failed",
			zap.String("entity", descriptor.Name), zap.Error(err))
		return
	}
	if row == nil {
		return
	}

	for i := range descriptor.Fields {
		f := &descriptor.Fields[i]
		if !needsFormatInference(*f) {
			continue
		}
		sample, ok := row[f.Name].(string)
		if !ok {
			continue
		}
		if format := schema.InferTimeFormat(sample); format != "" {
			f.FormatHint = format
		}
	}
}

// needsFormatInference reports whether a field maps to a plain string
// with no format of its own.
func needsFormatInference(f models.FieldMeta) bool {
	if f.FormatHint != "" {
		return false
	}
	schemaType, format := schema.MapType(f.Type, "")
	return schemaType == schema.TypeString && format == ""
}

// sampleRow fetches the first row of an entity, or nil when the entity
// is empty.
func (d *Discoverer) sampleRow(ctx context.Context, endpoint, entity string) (map[string]interface{}, error) {
	body, err := d.fetch(ctx, sampleURL(endpoint), entity)
	if err != nil {
		return nil, err
	}

	page, err := paginate.New().ParsePage(body)
	if err != nil {
		return nil, err
	}
	if len(page.Results) == 0 {
		return nil, nil
	}
	return page.Results[0], nil
}

// DescribeAll describes every entity concurrently, bounded by the
// configured describe concurrency. Each describe call is independent
// and read-only, so a failure is recorded against its own entity and
// never aborts the siblings.
func (d *Discoverer) DescribeAll(ctx context.Context, entities map[string]string) (map[string]*models.EntityDescriptor, map[string]error) {
	descriptors := make(map[string]*models.EntityDescriptor, len(entities))
	failures := make(map[string]error)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, d.cfg.Reliability.DescribeConcurrency)
	)

	for name := range entities {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			descriptor, err := d.DescribeEntity(ctx, name)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[name] = err
				return
			}
			if descriptor != nil {
				descriptors[name] = descriptor
			}
		}(name)
	}

	wg.Wait()
	return descriptors, failures
}

// ClearCache drops cached listings and descriptors, forcing the next
// call to hit the upstream endpoints.
func (d *Discoverer) ClearCache() {
	d.cache.Namespace(entityNamespace).Clear()
	d.cache.Namespace(descriptorNamespace).Clear()
}

// fetch performs a GET and returns the body, classifying non-2xx
// statuses through the shared taxonomy.
func (d *Discoverer) fetch(ctx context.Context, url, entity string) ([]byte, error) {
	resp, err := d.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := clients.ClassifyStatus(entity, resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read response body")
	}
	return body, nil
}

func describeURL(endpoint string) string {
	return strings.TrimRight(endpoint, "/") + "/describe"
}

func sampleURL(endpoint string) string {
	return strings.TrimRight(endpoint, "/") + "?page_size=1"
}

// buildDescriptor converts a describe payload to a descriptor with the
// fields in name order, so downstream schema generation is
// deterministic regardless of JSON object iteration.
func buildDescriptor(name, endpoint string, resp *describeResponse) *models.EntityDescriptor {
	fields := make([]models.FieldMeta, 0, len(resp.Fields))
	names := make([]string, 0, len(resp.Fields))
	for fieldName := range resp.Fields {
		names = append(names, fieldName)
	}
	sort.Strings(names)

	for _, fieldName := range names {
		f := resp.Fields[fieldName]
		fields = append(fields, models.FieldMeta{
			Name:       fieldName,
			Type:       f.Type,
			Required:   f.Required,
			Nullable:   f.Nullable,
			MaxLength:  f.MaxLength,
			FormatHint: f.Format,
		})
	}

	return &models.EntityDescriptor{
		Name:     name,
		Endpoint: endpoint,
		Fields:   fields,
	}
}
