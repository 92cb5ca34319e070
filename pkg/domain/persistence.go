package domain

import "context"

// PrefMasterMixInputMode is the single persisted preference: the last used
// SourceMode.
const PrefMasterMixInputMode = "masterMixInputMode"

// PreferenceStore is a named key-value slot store. Writes are last-write-wins
// and carry no transactional guarantees.
type PreferenceStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Close() error
}
