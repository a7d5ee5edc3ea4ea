package ddns

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"
)

func newCloudflareProvider(email, key string, opts ...cloudflare.Option) (cf *cloudflareProvider, err error) {
	// writes go out once; the next cycle is the retry
	opts = append([]cloudflare.Option{cloudflare.UsingRetryPolicy(0, 0, 0)}, opts...)
	cf = new(cloudflareProvider)
	cf.api, err = cloudflare.New(key, email, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}
	return cf, nil
}

// cloudflareProvider implements ddns.Provider on the Cloudflare v4 API,
// authenticating with an account email and global API key.
//
// It should be constructed using newCloudflareProvider.
type cloudflareProvider struct {
	api *cloudflare.API
}

var errNotConstructed = errors.New("cloudflare provider should be constructed with ddns.UsingCloudflare")

func (cf *cloudflareProvider) ListZones(ctx context.Context, name string) ([]Zone, error) {
	if cf.api == nil {
		return nil, errNotConstructed
	}
	zones, err := cf.api.ListZones(ctx, name)
	if err != nil {
		return nil, requestFailed("resolve zone", name, err)
	}
	out := make([]Zone, 0, len(zones))
	for _, z := range zones {
		out = append(out, Zone{ID: z.ID, Name: z.Name})
	}
	return out, nil
}

func (cf *cloudflareProvider) ListRecords(ctx context.Context, zoneID, name, recordType string) ([]Record, error) {
	if cf.api == nil {
		return nil, errNotConstructed
	}
	records, _, err := cf.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.ListDNSRecordsParams{
		Type: recordType,
		Name: name,
	})
	if err != nil {
		return nil, requestFailed("list records", name, err)
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, fromCloudflare(r))
	}
	return out, nil
}

func (cf *cloudflareProvider) CreateRecord(ctx context.Context, zoneID string, r Record) (Record, error) {
	if cf.api == nil {
		return Record{}, errNotConstructed
	}
	rec, err := cf.api.CreateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.CreateDNSRecordParams{
		Type:    r.Type,
		Name:    r.Name,
		Content: r.Content,
		TTL:     r.TTL,
		Proxied: cloudflare.BoolPtr(r.Proxied),
		Comment: r.Comment,
		Tags:    r.Tags,
	})
	if err != nil {
		return Record{}, requestFailed("create record", r.Name, err)
	}
	if rec.ID == "" {
		return r, nil
	}
	return fromCloudflare(rec), nil
}

// UpdateRecord overwrites type, name, content, ttl, proxied, comment and tags of the record r.ID.
// The API clears comment and tags that are left empty.
func (cf *cloudflareProvider) UpdateRecord(ctx context.Context, zoneID string, r Record) (Record, error) {
	if cf.api == nil {
		return Record{}, errNotConstructed
	}
	if r.ID == "" {
		return Record{}, &ProviderError{Op: "update record", Name: r.Name, Err: errors.New("record has no id")}
	}
	rec, err := cf.api.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.UpdateDNSRecordParams{
		ID:      r.ID,
		Type:    r.Type,
		Name:    r.Name,
		Content: r.Content,
		TTL:     r.TTL,
		Proxied: cloudflare.BoolPtr(r.Proxied),
		Comment: r.Comment,
		Tags:    r.Tags,
	})
	if err != nil {
		return Record{}, requestFailed("update record", r.Name, err)
	}
	if rec.ID == "" {
		return r, nil
	}
	return fromCloudflare(rec), nil
}

func fromCloudflare(r cloudflare.DNSRecord) Record {
	rec := Record{
		ID:      r.ID,
		Type:    r.Type,
		Name:    r.Name,
		Content: r.Content,
		TTL:     r.TTL,
		Comment: r.Comment,
		Tags:    r.Tags,
	}
	if r.Proxied != nil {
		rec.Proxied = *r.Proxied
	}
	return rec
}

// cloudflareLogger forwards cloudflare-go's retry and debug messages to logr.
type cloudflareLogger struct {
	log logr.Logger
}

func (l cloudflareLogger) Printf(format string, v ...interface{}) {
	l.log.V(1).Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
