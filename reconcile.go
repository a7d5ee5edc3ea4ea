package ddns

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
)

// Action is what reconciliation did to a record.
type Action int

const (
	Unchanged Action = iota
	Created
	Updated
)

func (a Action) String() string {
	switch a {
	case Unchanged:
		return "unchanged"
	case Created:
		return "created"
	case Updated:
		return "updated"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Outcome is the result of reconciling one record.
// Record is the provider-side record after reconciliation.
type Outcome struct {
	Action Action
	Record Record
}

// ResolveZone returns the provider identifier of the zone named zone.
//
// When the provider returns several zones for the name, the first one wins.
// An empty result is reported as ErrZoneNotFound.
func ResolveZone(ctx context.Context, p Provider, zone string) (string, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("zone", zone)

	zones, err := p.ListZones(ctx, zone)
	if err != nil {
		return "", err
	}
	if len(zones) == 0 {
		return "", &ProviderError{Op: "resolve zone", Name: zone, Err: ErrZoneNotFound}
	}
	if len(zones) > 1 {
		log.Info("provider returned more than one zone; using the first", "count", len(zones))
	}
	log.V(1).Info("resolved zone", "zoneID", zones[0].ID)
	return zones[0].ID, nil
}

// Reconcile makes the record name/recordType in zoneID hold addr.
//
// Only the first record matching name and type is inspected and written.
// A matching record whose content already equals addr is left alone;
// otherwise exactly one write is issued: a create when nothing matched,
// an update of the first match when its content differs.
func Reconcile(ctx context.Context, p Provider, zoneID, name, recordType string, addr Address) (Outcome, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("host", name, "type", recordType, "address", addr.String())

	if f, ok := FamilyOf(recordType); !ok || f != addr.Family() {
		return Outcome{}, fmt.Errorf("%w: %s record cannot hold %s", ErrRecordTypeMismatch, recordType, addr)
	}

	existing, err := p.ListRecords(ctx, zoneID, name, recordType)
	if err != nil {
		return Outcome{}, err
	}
	if len(existing) > 1 {
		log.Info("more than one record matches; only the first is managed", "count", len(existing))
	}

	desired := Record{
		Type:    recordType,
		Name:    name,
		Content: addr.String(),
		TTL:     AutomaticTTL,
		Proxied: false,
	}

	if len(existing) == 0 {
		log.V(1).Info("no record found, creating")
		created, err := p.CreateRecord(ctx, zoneID, desired)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Action: Created, Record: created}, nil
	}

	current := existing[0]
	if current.Content == desired.Content {
		return Outcome{Action: Unchanged, Record: current}, nil
	}

	log.V(1).Info("record content differs, updating", "recordID", current.ID, "current", current.Content)
	desired.ID = current.ID
	desired.Comment = current.Comment
	desired.Tags = current.Tags
	updated, err := p.UpdateRecord(ctx, zoneID, desired)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Action: Updated, Record: updated}, nil
}
