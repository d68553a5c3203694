package server

import (
	"context"

	"github.com/haasonsaas/buildli/api/rpc"
	"github.com/haasonsaas/buildli/internal/indexer"
	"github.com/haasonsaas/buildli/internal/query"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// buildliService implements the buildli gRPC API on top of the query
// engine and indexer.
type buildliService struct {
	engine  *query.Engine
	indexer *indexer.Indexer
}

func (s *buildliService) Query(req *rpc.QueryRequest, stream grpc.ServerStreamingServer[rpc.QueryResponse]) error {
	if req.Question == "" {
		return status.Error(codes.InvalidArgument, "question is required")
	}

	var sendErr error
	answer, err := s.engine.QueryStream(stream.Context(), req.Question, int(req.TopK),
		query.Filters{Repos: req.Repos, Languages: req.Languages},
		func(chunk string) {
			if sendErr == nil {
				sendErr = stream.Send(&rpc.QueryResponse{Chunk: chunk})
			}
		})
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	if sendErr != nil {
		return sendErr
	}

	// Final frame carries references only.
	return stream.Send(&rpc.QueryResponse{References: toWireRefs(answer.References)})
}

func (s *buildliService) BugSolve(req *rpc.BugSolveRequest, stream grpc.ServerStreamingServer[rpc.BugSolveResponse]) error {
	if req.Description == "" {
		return status.Error(codes.InvalidArgument, "description is required")
	}

	var sendErr error
	report, err := s.engine.SolveBug(stream.Context(), req.Description, int(req.TopK),
		func(chunk string) {
			if sendErr == nil {
				sendErr = stream.Send(&rpc.BugSolveResponse{Chunk: chunk})
			}
		})
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	if sendErr != nil {
		return sendErr
	}

	return stream.Send(&rpc.BugSolveResponse{
		Patch:         report.Patch,
		AffectedFiles: report.AffectedFiles,
	})
}

func (s *buildliService) IndexStatus(ctx context.Context, req *rpc.IndexStatusRequest) (*rpc.IndexStatusResponse, error) {
	stats := s.indexer.Stats()

	chunks, err := s.indexer.StoreCount(ctx)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	resp := &rpc.IndexStatusResponse{
		TotalFiles:   stats.TotalFiles,
		IndexedFiles: stats.IndexedFiles,
		TotalChunks:  chunks,
	}
	if !stats.LastUpdated.IsZero() {
		resp.LastUpdated = stats.LastUpdated.UTC().Format("2006-01-02T15:04:05Z")
	}
	return resp, nil
}

func toWireRefs(refs []query.Reference) []*rpc.CodeReference {
	out := make([]*rpc.CodeReference, len(refs))
	for i, r := range refs {
		out[i] = &rpc.CodeReference{
			FilePath:       r.FilePath,
			LineStart:      int32(r.LineStart),
			LineEnd:        int32(r.LineEnd),
			Snippet:        r.Snippet,
			RelevanceScore: float32(r.Score),
		}
	}
	return out
}
