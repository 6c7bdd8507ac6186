package extractor

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
)

// Class is a coarse failure category for generative API errors.
type Class string

const (
	ClassNotFound    Class = "not_found"
	ClassPermission  Class = "permission_denied"
	ClassQuota       Class = "quota_exhausted"
	ClassServer      Class = "server_error"
	ClassUnavailable Class = "unavailable"
	ClassSafety      Class = "safety_stop"
	ClassOther       Class = "other"
)

// Request is the model-independent generation input.
type Request struct {
	System string
	User   string
}

// Streamer streams generated text for one model, calling onChunk per piece.
type Streamer interface {
	Stream(ctx context.Context, model string, req Request, onChunk func(string)) error
}

// Gemini streams from the Gemini API.
type Gemini struct {
	client *genai.Client
}

func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Gemini{client: client}, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

func (g *Gemini) Stream(ctx context.Context, model string, req Request, onChunk func(string)) error {
	m := g.client.GenerativeModel(model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	m.ResponseMIMEType = "text/plain"

	iter := m.GenerateContentStream(ctx, genai.Text(req.User))
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return err
		}
		if text := responseText(resp); text != "" {
			onChunk(text)
		}
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

// Classify maps an API error to a Class for logging.
func Classify(err error) Class {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return ClassSafety
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if code := apiErr.HTTPCode(); code > 0 {
			return classifyHTTP(code)
		}
		if st := apiErr.GRPCStatus(); st != nil {
			return classifyGRPC(st.Code())
		}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return classifyHTTP(gErr.Code)
	}
	return ClassOther
}

func classifyHTTP(code int) Class {
	switch {
	case code == http.StatusNotFound:
		return ClassNotFound
	case code == http.StatusForbidden || code == http.StatusUnauthorized:
		return ClassPermission
	case code == http.StatusTooManyRequests:
		return ClassQuota
	case code == http.StatusServiceUnavailable:
		return ClassUnavailable
	case code >= 500:
		return ClassServer
	default:
		return ClassOther
	}
}

func classifyGRPC(code codes.Code) Class {
	switch code {
	case codes.NotFound:
		return ClassNotFound
	case codes.PermissionDenied, codes.Unauthenticated:
		return ClassPermission
	case codes.ResourceExhausted:
		return ClassQuota
	case codes.Internal, codes.Unknown, codes.DataLoss:
		return ClassServer
	case codes.Unavailable, codes.DeadlineExceeded:
		return ClassUnavailable
	default:
		return ClassOther
	}
}
