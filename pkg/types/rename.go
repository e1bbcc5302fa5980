package types

import "fmt"

// RenameRecord notes that a field was renamed From one name To another at
// Version. An empty To means "the name the field carried right after this
// rename", which is the next newer record's From, or the ledger key for the
// newest record.
type RenameRecord struct {
	From    string
	To      string
	Version int
}

// RenameLedger maps a field's current name to its rename history, newest
// first.
type RenameLedger map[string][]RenameRecord

// Validate checks that every history is strictly decreasing in Version and
// that every record names the field it was renamed from.
// Returns an error wrapping ErrInvalidLedger.
func (l RenameLedger) Validate() error {
	for name, history := range l {
		if name == "" {
			return fmt.Errorf("empty field name: %w", ErrInvalidLedger)
		}
		for i, r := range history {
			if r.From == "" {
				return fmt.Errorf("field %q record %d: empty from: %w", name, i, ErrInvalidLedger)
			}
			if r.Version < 0 {
				return fmt.Errorf("field %q record %d: negative version: %w", name, i, ErrInvalidLedger)
			}
			if i > 0 && r.Version >= history[i-1].Version {
				return fmt.Errorf("field %q: versions %d then %d are not newest-first: %w",
					name, history[i-1].Version, r.Version, ErrInvalidLedger)
			}
		}
	}
	return nil
}
