package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Export returns every recorded day in the persisted layout.
func Export(ctx context.Context, store Store) (Snapshot, error) {
	snap, err := store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("export ledger: %w", err)
	}
	return snap, nil
}

// Import merges snap into store. Existing totals are added to, never
// replaced. It returns the number of (day, domain) entries merged; on error
// the entries merged before the failure stay merged.
func Import(ctx context.Context, store Store, snap Snapshot) (int, error) {
	days := make([]string, 0, len(snap))
	for d := range snap {
		days = append(days, d)
	}
	sort.Strings(days)

	n := 0
	for _, day := range days {
		domains := make([]string, 0, len(snap[day]))
		for domain := range snap[day] {
			domains = append(domains, domain)
		}
		sort.Strings(domains)

		for _, domain := range domains {
			if err := store.Merge(ctx, day, domain, snap[day][domain]); err != nil {
				return n, fmt.Errorf("import %s/%s: %w", day, domain, err)
			}
			n++
		}
	}
	return n, nil
}

// ReadSnapshot decodes a snapshot in the persisted JSON layout.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap == nil {
		snap = Snapshot{}
	}
	return snap, nil
}

// WriteSnapshot encodes snap as indented JSON.
func WriteSnapshot(w io.Writer, snap Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
