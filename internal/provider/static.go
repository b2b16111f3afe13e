package provider

import "context"

// Static always succeeds with a fixed reply. It terminates the cascade
// so a chat request never fails outright when every upstream is down.
type Static struct {
	reply string
}

// NewStatic creates a static provider with the given reply text.
func NewStatic(reply string) *Static {
	return &Static{reply: reply}
}

// Name implements Provider.
func (s *Static) Name() string { return "static" }

// Complete implements Provider.
func (s *Static) Complete(ctx context.Context, _ Request) (*Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Reply{Text: s.reply}, nil
}
