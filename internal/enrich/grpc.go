package enrich

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/smartdispute/case-engine/internal/evidence"
)

// EnrichMethod is the full name of the unary enrichment RPC. Request and
// response are google.protobuf.Struct.
const EnrichMethod = "/casescore.enrich.v1.Enricher/Enrich"

// #region client-struct
// GRPC calls a remote enrichment service.
type GRPC struct {
	conn     *grpc.ClientConn
	cc       grpc.ClientConnInterface
	maxRunes int
}

// #endregion client-struct

// #region constructor
// NewGRPC connects to an enrichment service at addr.
func NewGRPC(addr string) (*GRPC, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &GRPC{conn: conn, cc: conn, maxRunes: MaxPromptRunes}, nil
}

// NewGRPCWithConn creates a GRPC enricher over an injected connection.
// Used for testing without a real server.
func NewGRPCWithConn(cc grpc.ClientConnInterface) *GRPC {
	return &GRPC{cc: cc, maxRunes: MaxPromptRunes}
}

// Close shuts down the gRPC connection.
func (g *GRPC) Close() error {
	if g.conn == nil {
		return nil
	}
	return g.conn.Close()
}

// #endregion constructor

// #region enrich
// Enrich sends the case to the service and decodes its reply.
func (g *GRPC) Enrich(ctx context.Context, ev *evidence.CaseEvidence) (*Insight, error) {
	if ev == nil {
		return nil, ErrNoInsight
	}
	ents := ev.Entities.Dedup()
	req, err := structpb.NewStruct(map[string]any{
		"case_type":    ev.CaseType,
		"jurisdiction": ev.Jurisdiction,
		"text":         CaseText(ev, g.maxRunes),
		"documents":    float64(len(ev.Documents)),
		"entity_count": float64(ents.Count()),
	})
	if err != nil {
		return nil, fmt.Errorf("build enrich request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := g.cc.Invoke(ctx, EnrichMethod, req, resp); err != nil {
		return nil, fmt.Errorf("enrich rpc: %w", err)
	}
	return insightFromMap(resp.AsMap())
}

// #endregion enrich
