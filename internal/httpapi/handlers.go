package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"janmat/internal/bootstrap/logging"
	"janmat/internal/domain/geo"
	"janmat/internal/domain/parse"
	"janmat/internal/domain/vocab"
	"janmat/internal/errs"
	"janmat/internal/usecase/geoquery"
	"janmat/internal/usecase/learning"
	"janmat/internal/usecase/parsing"
)

type parseRequest struct {
	PostID string `json:"post_id"`
	Text   string `json:"text"`
}

type locationResponse struct {
	RawMention string   `json:"raw_mention"`
	Path       string   `json:"path,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
	Ambiguous  bool     `json:"ambiguous"`
}

type parsedEventResponse struct {
	PostID            string             `json:"post_id"`
	EventType         string             `json:"event_type"`
	EventTypeEN       string             `json:"event_type_en"`
	EventCode         string             `json:"event_code"`
	Locations         []locationResponse `json:"locations"`
	People            []string           `json:"people"`
	Organizations     []string           `json:"organizations"`
	Schemes           []string           `json:"schemes"`
	SchemeLabelsEN    []string           `json:"scheme_labels_en"`
	GeneratedHashtags []string           `json:"generated_hashtags"`
	EventDate         string             `json:"event_date,omitempty"`
	OverallConfidence float64            `json:"overall_confidence"`
	NeedsReview       bool               `json:"needs_review"`
	ReviewStatus      string             `json:"review_status"`
	Reasoning         string             `json:"reasoning"`
	ParsedAt          time.Time          `json:"parsed_at"`
	ParsedBy          string             `json:"parsed_by"`
}

type correctionRequest struct {
	PostID    string   `json:"post_id"`
	Reviewer  string   `json:"reviewer"`
	SessionID string   `json:"session_id"`
	Decision  string   `json:"decision"`
	EventType string   `json:"event_type,omitempty"`
	Locations []string `json:"locations,omitempty"`
	People    []string `json:"people,omitempty"`
	Orgs      []string `json:"organizations,omitempty"`
	Schemes   []string `json:"schemes,omitempty"`
}

type correctionResponse struct {
	Applied      bool     `json:"applied"`
	Duplicate    bool     `json:"duplicate"`
	NewPending   []string `json:"new_pending"`
	Promoted     []string `json:"promoted"`
	ReviewStatus string   `json:"review_status"`
}

type nodeCountResponse struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	IsUrban bool   `json:"is_urban,omitempty"`
	Posts   int    `json:"posts"`
}

type summaryResponse struct {
	TotalPosts      int                 `json:"total_posts"`
	UnresolvedPosts int                 `json:"unresolved_posts"`
	Districts       []nodeCountResponse `json:"districts"`
}

type drilldownResponse struct {
	District   string              `json:"district"`
	Posts      int                 `json:"posts"`
	Assemblies []nodeCountResponse `json:"assemblies"`
	Blocks     []nodeCountResponse `json:"blocks"`
	Leaves     []nodeCountResponse `json:"leaves"`
}

type pendingEntryResponse struct {
	Category   string `json:"category"`
	Code       string `json:"code"`
	NameHI     string `json:"name_hi"`
	NameEN     string `json:"name_en,omitempty"`
	UsageCount int    `json:"usage_count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PostID == "" {
		writeError(w, http.StatusBadRequest, "post_id is required")
		return
	}

	event, err := s.parser.Parse(r.Context(), parsing.ParseInput{PostID: req.PostID, Text: req.Text})
	if err != nil {
		s.serverError(r, w, "parse post", err)
		return
	}

	writeJSON(w, http.StatusOK, toEventResponse(event))
}

func (s *Server) handleCorrection(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PostID == "" || req.Reviewer == "" || req.Decision == "" {
		writeError(w, http.StatusBadRequest, "post_id, reviewer and decision are required")
		return
	}

	result, err := s.reviews.SubmitCorrection(r.Context(), learning.CorrectionInput{
		PostID:    req.PostID,
		Reviewer:  req.Reviewer,
		SessionID: req.SessionID,
		Decision:  learning.Decision(req.Decision),
		Fields: learning.CorrectedFields{
			EventType:     req.EventType,
			Locations:     req.Locations,
			People:        req.People,
			Organizations: req.Orgs,
			Schemes:       req.Schemes,
		},
	})
	if err != nil {
		s.serverError(r, w, "submit correction", err)
		return
	}

	writeJSON(w, http.StatusOK, correctionResponse{
		Applied:      result.Applied,
		Duplicate:    result.Duplicate,
		NewPending:   emptyIfNil(result.NewPending),
		Promoted:     emptyIfNil(result.Promoted),
		ReviewStatus: string(result.ReviewStatus),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	filters, ok := parseFilters(w, r)
	if !ok {
		return
	}

	summary, err := s.queries.SummaryByDistrict(r.Context(), filters)
	if err != nil {
		s.serverError(r, w, "district summary", err)
		return
	}

	writeJSON(w, http.StatusOK, summaryResponse{
		TotalPosts:      summary.TotalPosts,
		UnresolvedPosts: summary.UnresolvedPosts,
		Districts:       toNodeCounts(summary.Districts),
	})
}

func (s *Server) handleDistrict(w http.ResponseWriter, r *http.Request) {
	district := chi.URLParam(r, "district")
	filters, ok := parseFilters(w, r)
	if !ok {
		return
	}

	drill, err := s.queries.ByDistrict(r.Context(), district, filters)
	if err != nil {
		if errors.Is(err, geoquery.ErrDistrictNotFound) {
			writeError(w, http.StatusNotFound, "district not found")
			return
		}
		s.serverError(r, w, "district drilldown", err)
		return
	}

	writeJSON(w, http.StatusOK, drilldownResponse{
		District:   drill.District.Name,
		Posts:      drill.Posts,
		Assemblies: toNodeCounts(drill.Assemblies),
		Blocks:     toNodeCounts(drill.Blocks),
		Leaves:     toNodeCounts(drill.Leaves),
	})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	category := vocab.Category(r.URL.Query().Get("category"))

	entries, err := s.vocab.ListPending(r.Context(), category)
	if err != nil {
		s.serverError(r, w, "list pending vocab", err)
		return
	}

	out := make([]pendingEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, pendingEntryResponse{
			Category:   string(entry.Category),
			Code:       entry.Code,
			NameHI:     entry.NameHI,
			NameEN:     entry.NameEN,
			UsageCount: entry.UsageCount,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

func parseFilters(w http.ResponseWriter, r *http.Request) (geoquery.Filters, bool) {
	var filters geoquery.Filters
	q := r.URL.Query()

	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be RFC3339")
			return filters, false
		}
		filters.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be RFC3339")
			return filters, false
		}
		filters.To = t
	}
	filters.EventCode = q.Get("event_code")

	return filters, true
}

func toEventResponse(event parse.ParsedEvent) parsedEventResponse {
	locations := make([]locationResponse, 0, len(event.Locations))
	for _, loc := range event.Locations {
		lr := locationResponse{
			RawMention: loc.RawMention,
			Ambiguous:  loc.Ambiguous,
		}
		if loc.Resolved() {
			lr.Path = loc.Path.String()
		}
		for _, candidate := range loc.Candidates {
			lr.Candidates = append(lr.Candidates, candidate.String())
		}
		locations = append(locations, lr)
	}

	return parsedEventResponse{
		PostID:            event.PostID,
		EventType:         event.EventType,
		EventTypeEN:       event.EventTypeEN,
		EventCode:         event.EventCode,
		Locations:         locations,
		People:            emptyIfNil(event.People),
		Organizations:     emptyIfNil(event.Organizations),
		Schemes:           emptyIfNil(event.Schemes),
		SchemeLabelsEN:    emptyIfNil(event.SchemeLabelsEN),
		GeneratedHashtags: emptyIfNil(event.GeneratedHashtags),
		EventDate:         event.EventDate,
		OverallConfidence: event.OverallConfidence,
		NeedsReview:       event.NeedsReview,
		ReviewStatus:      string(event.ReviewStatus),
		Reasoning:         event.Reasoning,
		ParsedAt:          event.ParsedAt,
		ParsedBy:          event.ParsedBy,
	}
}

func toNodeCounts(counts []geo.NodeCount) []nodeCountResponse {
	out := make([]nodeCountResponse, 0, len(counts))
	for _, c := range counts {
		out = append(out, nodeCountResponse{
			Name:    c.Node.Name,
			Type:    string(c.Node.Type),
			IsUrban: c.Node.IsUrban,
			Posts:   c.Posts,
		})
	}
	return out
}

func (s *Server) serverError(r *http.Request, w http.ResponseWriter, op string, err error) {
	logging.Error(r.Context(), op+" failed", slog.Any("err", errs.Loggable(err)))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func emptyIfNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
