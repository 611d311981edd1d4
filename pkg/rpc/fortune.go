package rpc

import (
	"context"
	"fmt"
)

// TellFortuneArgs is the tell_fortune argument schema.
type TellFortuneArgs struct {
	Sign string `json:"sign"`
}

// TellFortuneResponse is the tell_fortune result schema.
type TellFortuneResponse struct {
	Fortune string `json:"fortune"`
}

// FortuneService is a small locally-linked service, mostly useful to
// exercise local dispatch next to forwarded methods.
type FortuneService struct{}

// NewFortuneService returns a FortuneService.
func NewFortuneService() *FortuneService {
	return &FortuneService{}
}

// RegisterEndpoints implements the Service interface.
func (s *FortuneService) RegisterEndpoints(r Registry) error {
	if err := r.Register("tell_fortune", s.tellFortune); err != nil {
		return err
	}
	return r.Register("fake_fortune", s.fakeFortune)
}

func (s *FortuneService) generateFortune(sign string) string {
	switch sign {
	case "leo":
		return "latin for lion"
	default:
		return fmt.Sprintf("Horoscope unimplemented for sign '%s'", sign)
	}
}

func (s *FortuneService) tellFortune(ctx context.Context, caller string, req *Message) (any, error) {
	var args TellFortuneArgs
	if err := req.UnmarshalArgs(&args); err != nil {
		return nil, err
	}
	return TellFortuneResponse{Fortune: s.generateFortune(args.Sign)}, nil
}

func (s *FortuneService) fakeFortune(ctx context.Context, caller string, req *Message) (any, error) {
	return TellFortuneResponse{Fortune: "Bah"}, nil
}
