package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/buger/jsonparser"
	"github.com/thrasher-corp/fcs/log"
)

// ErrUnknownDef is returned when a task definition payload carries an
// unrecognised "ty" discriminator
var ErrUnknownDef = errors.New("unknown task definition")

// Def discriminator values
const (
	defTypeFoo = "foo"
	defTypeBar = "bar"
	defTypeBaz = "baz"
)

const barURL = "https://www.whattimeisitrightnow.com"

// Def is a task's workload definition, persisted as a tagged JSON payload
// with a kebab-case "ty" discriminator. The scheduler core treats defs as
// opaque; it only needs to serialise them and run them
type Def interface {
	// Type returns the wire discriminator
	Type() string

	// Run executes the workload. A returned error marks the task failed
	Run(ctx context.Context, tctx *Context) error
}

// UnmarshalDef decodes a tagged definition payload into its concrete variant
func UnmarshalDef(data []byte) (Def, error) {
	ty, err := jsonparser.GetUnsafeString(data, "ty")
	if err != nil {
		return nil, fmt.Errorf("task definition missing discriminator: %w", err)
	}
	switch ty {
	case defTypeFoo:
		return FooDef{}, nil
	case defTypeBar:
		return BarDef{}, nil
	case defTypeBaz:
		return BazDef{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDef, ty)
	}
}

// MarshalDef encodes a definition into its tagged payload
func MarshalDef(d Def) ([]byte, error) {
	if d == nil {
		return nil, ErrUnknownDef
	}
	return json.Marshal(struct {
		Ty string `json:"ty"`
	}{Ty: d.Type()})
}

// FooDef sleeps for a few seconds; useful for watching the cluster chew
// through a backlog
type FooDef struct{}

// Type returns the wire discriminator
func (FooDef) Type() string { return defTypeFoo }

// Run implements Def
func (FooDef) Run(ctx context.Context, tctx *Context) error {
	select {
	case <-time.After(3 * time.Second):
	case <-ctx.Done():
		return ctx.Err()
	}
	log.Infof(log.WorkerMgr, "Foo %s", tctx.ID)
	return nil
}

// MarshalJSON implements json.Marshaler
func (d FooDef) MarshalJSON() ([]byte, error) { return MarshalDef(d) }

// BarDef performs an HTTP request against an external service and reports
// the response status
type BarDef struct{}

// Type returns the wire discriminator
func (BarDef) Type() string { return defTypeBar }

// Run implements Def
func (BarDef) Run(ctx context.Context, _ *Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, barURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	log.Infof(log.WorkerMgr, "%s", resp.Status)
	return nil
}

// MarshalJSON implements json.Marshaler
func (d BarDef) MarshalJSON() ([]byte, error) { return MarshalDef(d) }

// BazDef logs a random number, nothing more to it
type BazDef struct{}

// Type returns the wire discriminator
func (BazDef) Type() string { return defTypeBaz }

// Run implements Def
func (BazDef) Run(_ context.Context, _ *Context) error {
	log.Infof(log.WorkerMgr, "Baz %d", rand.Intn(344))
	return nil
}

// MarshalJSON implements json.Marshaler
func (d BazDef) MarshalJSON() ([]byte, error) { return MarshalDef(d) }
