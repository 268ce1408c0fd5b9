package api

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/valyala/fasthttp"

	"github.com/xsslab/xsslab/internal/csp"
	"github.com/xsslab/xsslab/internal/domscan"
	"github.com/xsslab/xsslab/internal/mutation"
)

const version = "1.0.0"

type fuzzRequest struct {
	Payload    string
	Strategies []string
	Limit      int
}

type fuzzResponse struct {
	BasePayload string              `json:"basePayload"`
	Strategies  mutation.Strategies `json:"strategies"`
	Total       int                 `json:"total"`
	Returned    int                 `json:"returned"`
	Limit       int                 `json:"limit"`
	Mutations   []mutation.Mutation `json:"mutations"`
}

func (s *Server) handleFuzz(ctx *fasthttp.RequestCtx) {
	req, err := s.parseFuzzRequest(ctx)
	if err != nil {
		writeFailure(ctx, err)
		return
	}

	flags := mutation.ParseStrategies(req.Strategies)
	result := mutation.Generate(req.Payload, flags)

	mutations := result.Mutations
	if len(mutations) > req.Limit {
		mutations = mutations[:req.Limit]
	}

	writeJSON(ctx, fasthttp.StatusOK, fuzzResponse{
		BasePayload: req.Payload,
		Strategies:  flags,
		Total:       result.Total,
		Returned:    len(mutations),
		Limit:       req.Limit,
		Mutations:   mutations,
	})
}

// parseFuzzRequest reads the JSON body of a POST, or the query string
// otherwise (and for a POST with an empty body).
func (s *Server) parseFuzzRequest(ctx *fasthttp.RequestCtx) (*fuzzRequest, error) {
	req := &fuzzRequest{}
	var rawLimit json.RawMessage
	payloadSet := false

	body := bytes.TrimSpace(ctx.PostBody())
	if ctx.IsPost() && len(body) > 0 {
		var in struct {
			Payload    json.RawMessage `json:"payload"`
			Strategies json.RawMessage `json:"strategies"`
			Limit      json.RawMessage `json:"limit"`
		}
		if err := json.Unmarshal(body, &in); err != nil {
			return nil, invalid("invalid JSON body: %v", err)
		}
		if len(in.Payload) > 0 && string(in.Payload) != "null" {
			if err := json.Unmarshal(in.Payload, &req.Payload); err != nil {
				return nil, invalid("payload must be a string")
			}
			payloadSet = true
		}
		strategies, err := parseStrategies(in.Strategies)
		if err != nil {
			return nil, err
		}
		req.Strategies = strategies
		rawLimit = in.Limit
	} else {
		args := ctx.QueryArgs()
		if args.Has("payload") {
			req.Payload = string(args.Peek("payload"))
			payloadSet = true
		}
		for _, v := range args.PeekMulti("strategies") {
			req.Strategies = append(req.Strategies, string(v))
		}
		if v := args.Peek("limit"); len(v) > 0 {
			rawLimit = json.RawMessage(strconv.Quote(string(v)))
		}
	}

	if !payloadSet || req.Payload == "" {
		return nil, invalid("payload is required")
	}
	if n := utf8.RuneCountInString(req.Payload); n > s.config.Fuzz.MaxPayloadLength {
		return nil, invalid("payload exceeds %d characters (got %d)", s.config.Fuzz.MaxPayloadLength, n)
	}

	req.Limit = s.parseLimit(rawLimit)
	return req, nil
}

// parseStrategies accepts an array of names or one comma separated string.
func parseStrategies(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	return nil, invalid("strategies must be an array of names or a comma separated string")
}

// parseLimit falls back to the default for anything non-numeric and
// clamps the rest into [1, max].
func (s *Server) parseLimit(raw json.RawMessage) int {
	def := s.config.Fuzz.DefaultLimit
	if len(raw) == 0 || string(raw) == "null" {
		return def
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return def
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return def
		}
		n = parsed
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return def
	}

	return int(math.Min(math.Max(math.Trunc(n), 1), float64(s.config.Fuzz.MaxLimit)))
}

type scanRequest struct {
	Code      string `json:"code"`
	Framework string `json:"framework"`
}

type scanResponse struct {
	Framework    string                `json:"framework"`
	Result       *domscan.ScanResult   `json:"result"`
	Risk         domscan.RiskScore     `json:"risk"`
	Remediations []domscan.Remediation `json:"remediations"`
}

func (s *Server) handleScan(ctx *fasthttp.RequestCtx) {
	var req scanRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "code is required")
		return
	}
	if len(req.Code) > s.config.Scan.MaxCodeSize {
		writeError(ctx, fasthttp.StatusBadRequest, "code exceeds "+strconv.Itoa(s.config.Scan.MaxCodeSize)+" bytes")
		return
	}

	framework := strings.ToLower(strings.TrimSpace(req.Framework))
	if framework == "" {
		framework = s.config.Scan.DefaultFramework
	}
	switch framework {
	case "auto":
		framework = domscan.DetectFramework(req.Code)
	default:
		if !knownFramework(framework) {
			writeError(ctx, fasthttp.StatusBadRequest, "unknown framework "+strconv.Quote(req.Framework))
			return
		}
	}

	result := domscan.Scan(req.Code, framework)
	resp := scanResponse{
		Framework:    result.Framework,
		Result:       result,
		Risk:         domscan.CalculateRiskScore(result),
		Remediations: []domscan.Remediation{},
	}
	seen := map[string]bool{}
	for _, f := range result.DetectedSinks {
		if seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		resp.Remediations = append(resp.Remediations, domscan.GetRemediationAdvice(f))
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

func knownFramework(name string) bool {
	for _, f := range domscan.Frameworks() {
		if f == name {
			return true
		}
	}
	return false
}

type cspRequest struct {
	Policy  string `json:"policy"`
	Payload string `json:"payload"`
}

type cspResponse struct {
	Parsed *csp.ParsedCSP    `json:"parsed"`
	Score  csp.SecurityScore `json:"score"`
	Test   *csp.TestResult   `json:"test,omitempty"`
}

func (s *Server) handleCSP(ctx *fasthttp.RequestCtx) {
	var req cspRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if utf8.RuneCountInString(req.Payload) > s.config.Fuzz.MaxPayloadLength {
		writeError(ctx, fasthttp.StatusBadRequest, "payload exceeds "+strconv.Itoa(s.config.Fuzz.MaxPayloadLength)+" characters")
		return
	}

	parsed := csp.Parse(req.Policy)
	resp := cspResponse{
		Parsed: parsed,
		Score:  csp.CalculateSecurityScore(parsed),
	}
	if req.Payload != "" {
		verdict := csp.TestPayload(req.Payload, parsed)
		resp.Test = &verdict
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, map[string]string{
		"status":  "ok",
		"version": version,
	})
}
