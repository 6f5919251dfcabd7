package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haasonsaas/groundedcore/internal/evidence"
	"github.com/haasonsaas/groundedcore/internal/personastore"
	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// Deps aggregates the backing stores the built-in tool handlers dispatch
// against. Any field left nil degrades its tool to a DependencyUnavailable
// error rather than a panic.
type Deps struct {
	Personas  personastore.Store
	Evidence  evidence.Store
	Retriever *evidence.Retriever
	SiteMaps  SiteMapStore
	Events    EventLog
	Feedback  FeedbackStore
}

// RegisterBuiltins registers every contractual built-in tool from spec.md
// §4.5 against the given Deps.
func RegisterBuiltins(reg *Registry, deps Deps) {
	reg.Register(getNPCProfileDef(), getNPCProfileHandler(deps))
	reg.Register(getPromptActiveDef(), getPromptActiveHandler(deps))
	reg.Register(searchContentDef(), searchContentHandler(deps))
	reg.Register(getSiteMapDef(), getSiteMapHandler(deps))
	reg.Register(createDraftContentDef(), createDraftContentHandler(deps))
	reg.Register(logUserEventDef(), logUserEventHandler(deps))
	reg.Register(retrieveEvidenceDef(), retrieveEvidenceHandler(deps))
	reg.Register(submitFeedbackDef(), submitFeedbackHandler(deps))
	reg.Register(listFeedbackDef(), listFeedbackHandler(deps))
}

func dependencyUnavailable(name string) error {
	return &toolError{errType: domain.ErrTypeDependencyUnavailable, err: fmt.Errorf("tools: %s dependency not configured", name)}
}

// --- get_npc_profile ---

func getNPCProfileDef() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:        "get_npc_profile",
		Description: "Returns the active NPC profile, or a specific version if requested.",
		Category:    domain.CategoryRead,
		AICallable:  true,
		TimeoutSeconds: 1,
		InputSchema: mustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"npc_id":  map[string]any{"type": "string"},
				"version": map[string]any{"type": "integer"},
			},
			"required": []string{"npc_id"},
		}),
	}
}

func getNPCProfileHandler(deps Deps) Handler {
	return func(tc *domain.ToolContext, input json.RawMessage) (any, error) {
		if deps.Personas == nil {
			return nil, dependencyUnavailable("personas")
		}
		var in struct {
			NPCID   string `json:"npc_id"`
			Version int    `json:"version"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, ValidationError(fmt.Errorf("decode input: %w", err))
		}

		if in.Version > 0 {
			profile, err := deps.Personas.GetProfileVersion(tc.Scope, in.NPCID, in.Version)
			if err != nil {
				return nil, NotFoundError(err)
			}
			return profile, nil
		}
		profile, err := deps.Personas.GetActiveProfile(tc.Scope, in.NPCID)
		if err != nil {
			return nil, NotFoundError(err)
		}
		return profile, nil
	}
}

// --- get_prompt_active ---

func getPromptActiveDef() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:        "get_prompt_active",
		Description: "Returns the active prompt for an NPC and prompt type, deriving one from the persona if none is active.",
		Category:    domain.CategoryRead,
		AICallable:  true,
		TimeoutSeconds: 1,
		InputSchema: mustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"npc_id":      map[string]any{"type": "string"},
				"prompt_type": map[string]any{"type": "string", "enum": []string{"system", "greeting", "fallback"}},
			},
			"required": []string{"npc_id", "prompt_type"},
		}),
	}
}

func getPromptActiveHandler(deps Deps) Handler {
	return func(tc *domain.ToolContext, input json.RawMessage) (any, error) {
		if deps.Personas == nil {
			return nil, dependencyUnavailable("personas")
		}
		var in struct {
			NPCID      string            `json:"npc_id"`
			PromptType domain.PromptType `json:"prompt_type"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, ValidationError(fmt.Errorf("decode input: %w", err))
		}

		prompt, err := deps.Personas.GetActivePrompt(tc.Scope, in.NPCID, in.PromptType)
		if err == nil {
			return prompt, nil
		}

		profile, profileErr := deps.Personas.GetActiveProfile(tc.Scope, in.NPCID)
		if profileErr != nil {
			return nil, NotFoundError(fmt.Errorf("no active prompt or profile for npc %q: %w", in.NPCID, profileErr))
		}
		return personastore.DerivePromptFromPersona(profile, in.PromptType), nil
	}
}

// --- search_content ---

func searchContentDef() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:        "search_content",
		Description: "Substring search over content, bounded by limit.",
		Category:    domain.CategoryRead,
		AICallable:  true,
		TimeoutSeconds: 1,
		InputSchema: mustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":        map[string]any{"type": "string"},
				"content_type": map[string]any{"type": "string"},
				"tags":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"limit":        map[string]any{"type": "integer"},
			},
			"required": []string{"query"},
		}),
	}
}

func searchContentHandler(deps Deps) Handler {
	return func(tc *domain.ToolContext, input json.RawMessage) (any, error) {
		if deps.Evidence == nil {
			return nil, dependencyUnavailable("evidence store")
		}
		var in struct {
			Query       string   `json:"query"`
			ContentType string   `json:"content_type"`
			Tags        []string `json:"tags"`
			Limit       int      `json:"limit"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, ValidationError(fmt.Errorf("decode input: %w", err))
		}
		if in.Limit <= 0 {
			in.Limit = 20
		}

		all, err := deps.Evidence.ListContent(context.Background(), tc.Scope, in.ContentType, in.Tags)
		if err != nil {
			return nil, dependencyUnavailable("evidence store")
		}

		query := strings.ToLower(in.Query)
		matches := make([]domain.Content, 0, in.Limit)
		for _, c := range all {
			if strings.Contains(strings.ToLower(c.Title), query) || strings.Contains(strings.ToLower(c.Body), query) {
				matches = append(matches, c)
				if len(matches) >= in.Limit {
					break
				}
			}
		}
		return matches, nil
	}
}

// --- get_site_map ---

func getSiteMapDef() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:        "get_site_map",
		Description: "Returns the site's composition of points of interest and routes.",
		Category:    domain.CategoryRead,
		AICallable:  true,
		TimeoutSeconds: 1,
		InputSchema: mustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"include_pois":   map[string]any{"type": "boolean"},
				"include_routes": map[string]any{"type": "boolean"},
			},
		}),
	}
}

func getSiteMapHandler(deps Deps) Handler {
	return func(tc *domain.ToolContext, input json.RawMessage) (any, error) {
		if deps.SiteMaps == nil {
			return nil, dependencyUnavailable("site maps")
		}
		var in struct {
			IncludePOIs   bool `json:"include_pois"`
			IncludeRoutes bool `json:"include_routes"`
		}
		if len(input) > 0 {
			if err := json.Unmarshal(input, &in); err != nil {
				return nil, ValidationError(fmt.Errorf("decode input: %w", err))
			}
		}

		siteMap, err := deps.SiteMaps.GetSiteMap(tc.Scope)
		if err != nil {
			return nil, dependencyUnavailable("site maps")
		}
		if !in.IncludePOIs {
			siteMap.POIs = nil
		}
		if !in.IncludeRoutes {
			siteMap.Routes = nil
		}
		return siteMap, nil
	}
}

// --- create_draft_content ---

func createDraftContentDef() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:        "create_draft_content",
		Description: "Creates a new content row with status=draft. Side-effecting.",
		Category:    domain.CategoryWrite,
		AICallable:  true,
		TimeoutSeconds: 2,
		InputSchema: mustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content_type": map[string]any{"type": "string"},
				"title":        map[string]any{"type": "string"},
				"body":         map[string]any{"type": "string"},
				"summary":      map[string]any{"type": "string"},
				"tags":         map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"domains":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"source":       map[string]any{"type": "string"},
			},
			"required": []string{"content_type", "title", "body"},
		}),
	}
}

func createDraftContentHandler(deps Deps) Handler {
	return func(tc *domain.ToolContext, input json.RawMessage) (any, error) {
		if deps.Evidence == nil {
			return nil, dependencyUnavailable("evidence store")
		}
		var in struct {
			ContentType string   `json:"content_type"`
			Title       string   `json:"title"`
			Body        string   `json:"body"`
			Summary     string   `json:"summary"`
			Tags        []string `json:"tags"`
			Domains     []string `json:"domains"`
			Source      string   `json:"source"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, ValidationError(fmt.Errorf("decode input: %w", err))
		}

		content, err := deps.Evidence.CreateContent(context.Background(), domain.Content{
			Scope:       tc.Scope,
			ContentType: in.ContentType,
			Title:       in.Title,
			Body:        in.Body,
			Summary:     in.Summary,
			Tags:        in.Tags,
			Domains:     in.Domains,
			Source:      in.Source,
			Status:      "draft",
		})
		if err != nil {
			return nil, dependencyUnavailable("evidence store")
		}
		return content, nil
	}
}

// --- log_user_event ---

func logUserEventDef() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:        "log_user_event",
		Description: "Appends an analytic event. Fire-and-forget.",
		Category:    domain.CategoryAnalytics,
		AICallable:  true,
		TimeoutSeconds: 1,
		InputSchema: mustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"event_type": map[string]any{"type": "string"},
				"event_data": map[string]any{"type": "object"},
			},
			"required": []string{"event_type"},
		}),
	}
}

func logUserEventHandler(deps Deps) Handler {
	return func(tc *domain.ToolContext, input json.RawMessage) (any, error) {
		if deps.Events == nil {
			return nil, dependencyUnavailable("event log")
		}
		var in struct {
			EventType string         `json:"event_type"`
			EventData map[string]any `json:"event_data"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, ValidationError(fmt.Errorf("decode input: %w", err))
		}

		if err := deps.Events.Append(UserEvent{
			Scope:      tc.Scope,
			SessionID:  tc.SessionID,
			NPCID:      tc.NPCID,
			EventType:  in.EventType,
			EventData:  in.EventData,
		}); err != nil {
			return nil, dependencyUnavailable("event log")
		}
		return map[string]bool{"logged": true}, nil
	}
}

// --- retrieve_evidence ---

func retrieveEvidenceDef() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:             "retrieve_evidence",
		Description:      "Retrieves evidence via trgm/qdrant/like/hybrid strategies. Never fails hard.",
		Category:         domain.CategoryRetrieval,
		RequiresEvidence: false,
		AICallable:       true,
		TimeoutSeconds:   2,
		InputSchema: mustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":     map[string]any{"type": "string"},
				"strategy":  map[string]any{"type": "string"},
				"limit":     map[string]any{"type": "integer"},
				"min_score": map[string]any{"type": "number"},
				"domains":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"use_trgm":  map[string]any{"type": "boolean"},
			},
			"required": []string{"query"},
		}),
	}
}

func retrieveEvidenceHandler(deps Deps) Handler {
	return func(tc *domain.ToolContext, input json.RawMessage) (any, error) {
		if deps.Retriever == nil {
			return nil, dependencyUnavailable("retriever")
		}
		var in struct {
			Query    string                   `json:"query"`
			Strategy domain.RetrievalStrategy `json:"strategy"`
			Limit    int                      `json:"limit"`
			MinScore float64                  `json:"min_score"`
			Domains  []string                 `json:"domains"`
			UseTrgm  bool                     `json:"use_trgm"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, ValidationError(fmt.Errorf("decode input: %w", err))
		}
		if in.Limit <= 0 {
			in.Limit = 10
		}
		if in.UseTrgm && in.Strategy == "" {
			in.Strategy = domain.StrategyTRGM
		}

		result := deps.Retriever.Retrieve(context.Background(), tc.Scope, in.Query, in.Strategy, in.Limit, in.MinScore, in.Domains)
		return result, nil
	}
}

// --- submit_feedback ---

func submitFeedbackDef() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:        "submit_feedback",
		Description: "Persists a pending feedback item, optionally tied to a trace.",
		Category:    domain.CategoryFeedback,
		AICallable:  true,
		TimeoutSeconds: 1,
		InputSchema: mustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"trace_id":      map[string]any{"type": "string"},
				"feedback_type": map[string]any{"type": "string"},
				"severity":      map[string]any{"type": "string"},
				"content":       map[string]any{"type": "string"},
			},
			"required": []string{"feedback_type", "severity", "content"},
		}),
	}
}

func submitFeedbackHandler(deps Deps) Handler {
	return func(tc *domain.ToolContext, input json.RawMessage) (any, error) {
		if deps.Feedback == nil {
			return nil, dependencyUnavailable("feedback store")
		}
		var in struct {
			TraceID      string                  `json:"trace_id"`
			FeedbackType domain.FeedbackType     `json:"feedback_type"`
			Severity     domain.FeedbackSeverity `json:"severity"`
			Content      string                  `json:"content"`
		}
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, ValidationError(fmt.Errorf("decode input: %w", err))
		}

		feedback, err := deps.Feedback.Create(domain.Feedback{
			Scope:    tc.Scope,
			TraceID:  in.TraceID,
			Type:     in.FeedbackType,
			Severity: in.Severity,
			Content:  in.Content,
			Status:   domain.FeedbackPending,
		})
		if err != nil {
			return nil, dependencyUnavailable("feedback store")
		}
		return feedback, nil
	}
}

// --- list_feedback ---

func listFeedbackDef() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:        "list_feedback",
		Description: "Paged read of feedback items, optionally filtered.",
		Category:    domain.CategoryFeedback,
		AICallable:  false,
		TimeoutSeconds: 1,
		InputSchema: mustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"status":        map[string]any{"type": "string"},
				"feedback_type": map[string]any{"type": "string"},
				"severity":      map[string]any{"type": "string"},
				"limit":         map[string]any{"type": "integer"},
			},
		}),
	}
}

func listFeedbackHandler(deps Deps) Handler {
	return func(tc *domain.ToolContext, input json.RawMessage) (any, error) {
		if deps.Feedback == nil {
			return nil, dependencyUnavailable("feedback store")
		}
		var in struct {
			Status       domain.FeedbackStatus   `json:"status"`
			FeedbackType domain.FeedbackType     `json:"feedback_type"`
			Severity     domain.FeedbackSeverity `json:"severity"`
			Limit        int                     `json:"limit"`
		}
		if len(input) > 0 {
			if err := json.Unmarshal(input, &in); err != nil {
				return nil, ValidationError(fmt.Errorf("decode input: %w", err))
			}
		}
		if in.Limit <= 0 {
			in.Limit = 50
		}

		items, err := deps.Feedback.List(tc.Scope, in.Status, in.FeedbackType, in.Severity, in.Limit)
		if err != nil {
			return nil, dependencyUnavailable("feedback store")
		}
		return items, nil
	}
}
