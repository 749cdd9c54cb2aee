package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mnemograph/mnemograph/engine/coordinator"
	"github.com/mnemograph/mnemograph/engine/errs"
)

func userIDParam(c echo.Context) (int64, error) {
	v, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		return 0, errs.New(errs.InvalidInput, "server: invalid userId path parameter")
	}
	return v, nil
}

func forceRefresh(c echo.Context) bool {
	return c.QueryParam("refresh") == "true"
}

// httpStatus maps a core error Kind onto the HTTP status the spec's
// read endpoints are expected to surface.
func httpStatus(err error) int {
	switch errs.KindOf(err) {
	case errs.InvalidInput:
		return http.StatusBadRequest
	case errs.NotFound:
		return http.StatusNotFound
	case errs.Conflict:
		return http.StatusConflict
	case errs.Timeout:
		return http.StatusGatewayTimeout
	case errs.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c echo.Context, err error) error {
	return c.JSON(httpStatus(err), echo.Map{
		"error": err.Error(),
		"kind":  errs.KindOf(err).String(),
	})
}

type ingestRequest struct {
	UserID   int64    `json:"userId"`
	Content  string   `json:"content"`
	Type     string   `json:"type"`
	Summary  string   `json:"summary,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

func (s *Server) handleIngest(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, errs.Wrap(errs.InvalidInput, err, "server: decode ingest request"))
	}

	id, err := s.coordinator.Ingest(c.Request().Context(), coordinator.MemoryInput{
		UserID:   req.UserID,
		Content:  req.Content,
		Type:     req.Type,
		Summary:  req.Summary,
		Keywords: req.Keywords,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"id": id})
}

func (s *Server) handleListMemories(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return writeError(c, err)
	}

	limit := 100
	if v := c.QueryParam("limit"); v != "" {
		if parsed, perr := strconv.Atoi(v); perr == nil && parsed > 0 {
			limit = parsed
		}
	}

	rows, err := s.store.ListMemories(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return c.JSON(http.StatusOK, echo.Map{"memories": rows})
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (s *Server) handleSearch(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return writeError(c, err)
	}
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, errs.Wrap(errs.InvalidInput, err, "server: decode search request"))
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	results, err := s.coordinator.Search(c.Request().Context(), userID, req.Query, req.Limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"results": results})
}

type topicView struct {
	ID                 string   `json:"id"`
	Label              string   `json:"label"`
	Count              int      `json:"count"`
	Percentage         float64  `json:"percentage"`
	RepresentativeMemory string `json:"representativeMemory"`
	Keywords           []string `json:"keywords,omitempty"`
}

func (s *Server) handleGetTopics(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return writeError(c, err)
	}
	refresh := forceRefresh(c)

	clustersResp, err := s.coordinator.GetClusters(c.Request().Context(), userID, refresh)
	if err != nil {
		return writeError(c, err)
	}
	topicsResp, err := s.coordinator.GetTopics(c.Request().Context(), userID, refresh)
	if err != nil {
		return writeError(c, err)
	}

	sizes := make(map[string]int, len(clustersResp.Result.Clusters))
	total := 0
	for _, cl := range clustersResp.Result.Clusters {
		sizes[cl.ID] = cl.Size()
		total += cl.Size()
	}

	views := make([]topicView, 0, len(topicsResp.Topics))
	for _, t := range topicsResp.Topics {
		pct := 0.0
		if total > 0 {
			pct = float64(sizes[t.ClusterID]) / float64(total) * 100
		}
		views = append(views, topicView{
			ID:                   t.ClusterID,
			Label:                t.Label,
			Count:                sizes[t.ClusterID],
			Percentage:           pct,
			RepresentativeMemory: t.RepresentativeMemoryID,
			Keywords:             t.Keywords,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"topics":      views,
		"stale":       topicsResp.Stale,
		"generatedAt": topicsResp.GeneratedAt,
	})
}

func (s *Server) handleGetGraph(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return writeError(c, err)
	}

	resp, err := s.coordinator.GetGraph(c.Request().Context(), userID, forceRefresh(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"nodes":       resp.Graph.Nodes,
		"links":       resp.Graph.Edges,
		"version":     resp.Graph.Version,
		"stale":       resp.Stale,
		"generatedAt": resp.GeneratedAt,
	})
}

func (s *Server) handleRepair(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return writeError(c, err)
	}

	count, err := s.coordinator.Repair(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	if s.metrics != nil && count > 0 {
		for i := 0; i < count; i++ {
			s.metrics.IncRepairQueued()
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"count": count})
}
