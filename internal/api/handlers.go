package api

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/feeds/internal/assembler"
	"github.com/jonesrussell/north-cloud/feeds/internal/commands"
	"github.com/jonesrussell/north-cloud/feeds/internal/logger"
	"github.com/jonesrussell/north-cloud/feeds/internal/refresh"
	"github.com/jonesrussell/north-cloud/feeds/internal/resource"
	"github.com/jonesrussell/north-cloud/feeds/internal/subscriptions"
)

const maxPageSize = 100

// Handler serves the HTTP routes.
type Handler struct {
	assembler     Assembler
	subscriptions subscriptions.Store
	commands      CommandHandler
	sources       SourceTable
	programs      ProgramIndex
	logger        logger.Logger
	service       string
	started       time.Time
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.service,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

type sourceView struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	RefreshType string `json:"refreshType"`
	TTL         string `json:"ttl,omitempty"`
	HasProgram  bool   `json:"hasProgram"`
}

// ListSources lists the source table.
func (h *Handler) ListSources(c *gin.Context) {
	all := h.sources.All()
	out := make([]sourceView, 0, len(all))
	for _, src := range all {
		v := sourceView{
			Name:        src.Name,
			URL:         src.URL,
			RefreshType: string(src.RefreshType),
			HasProgram:  h.programs.Has(src.Name),
		}
		if src.TTL > 0 {
			v.TTL = src.TTL.String()
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"sources": out, "count": len(out)})
}

// GetCanonicalFeed returns one source's stored canonical feed.
func (h *Handler) GetCanonicalFeed(c *gin.Context) {
	name := c.Param("source")
	f, ok, err := h.assembler.Canonical(c.Request.Context(), name)
	if err != nil {
		h.logger.Error("Failed to read canonical feed", logger.Source(name), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read feed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}
	c.JSON(http.StatusOK, f)
}

// AssembleFeeds assembles the sources listed in the sources query parameter.
func (h *Handler) AssembleFeeds(c *gin.Context) {
	names := splitList(c.Query("sources"))
	if len(names) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter sources is required"})
		return
	}
	for _, n := range names {
		if _, ok := h.sources.Get(n); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown source", "source": n})
			return
		}
	}
	h.serveAssembly(c, names, nil)
}

// GetUserFeed assembles a user's subscribed sources ranked by their
// category preferences.
func (h *Handler) GetUserFeed(c *gin.Context) {
	userID := c.Param("id")
	profile, err := h.subscriptions.Profile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, subscriptions.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.logger.Error("Failed to load profile", logger.String("user_id", userID), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}

	if h.serveCached(c, profile.Sources) {
		return
	}
	h.serveAssembly(c, profile.Sources, profile.CategoryRanking)
}

// serveCached answers 304 when the request names a known response ETag that
// was assembled from exactly these sources.
func (h *Handler) serveCached(c *gin.Context, sources []string) bool {
	etag := c.GetHeader("If-None-Match")
	if etag == "" {
		etag = c.GetHeader("If-Match")
	}
	if etag == "" || etag == "*" {
		return false
	}

	asm, ok, err := h.assembler.Lookup(c.Request.Context(), etag)
	if err != nil {
		h.logger.Warn("Response cache lookup failed", logger.String("etag", etag), logger.Error(err))
		return false
	}
	if !ok || !slices.Equal(asm.Sources, sources) {
		return false
	}

	info := asm.Resource.Info()
	setCollectionHeaders(c, asm.ETag, 0, info.Count-1, info.Count)
	c.Status(http.StatusNotModified)
	return true
}

func (h *Handler) serveAssembly(c *gin.Context, sources []string, ranking assembler.Ranking) {
	offset, pageSize, err := h.pagination(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pagination", "details": err.Error()})
		return
	}

	asm, err := h.assembler.Assemble(c.Request.Context(), sources, ranking)
	if err != nil {
		h.logger.Error("Failed to assemble feed", logger.Strings("sources", sources), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assemble feed"})
		return
	}

	res := resource.New(assembler.ResourceName, pageSize)
	res.Set(asm.Resource.Items(), nil)
	if err = res.Skip(offset); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pagination", "details": err.Error()})
		return
	}
	page := res.Next()

	start := res.PageStart()
	setCollectionHeaders(c, asm.ETag, start, start+len(page)-1, res.Info().Count)
	c.JSON(http.StatusOK, res)
}

func (h *Handler) pagination(c *gin.Context) (offset, pageSize int, err error) {
	pageSize = h.assembler.PageSize()
	if raw := c.Query("page_size"); raw != "" {
		pageSize, err = strconv.Atoi(raw)
		if err != nil || pageSize < 1 || pageSize > maxPageSize {
			return 0, 0, fmt.Errorf("page_size must be between 1 and %d", maxPageSize)
		}
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return offset, pageSize, nil
}

// SubmitCommand runs an inbound command.
func (h *Handler) SubmitCommand(c *gin.Context) {
	var cmd commands.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	result, err := h.commands.Handle(c.Request.Context(), cmd)
	if err != nil {
		status := commandStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Command failed", logger.String("command", string(cmd.Name)), logger.Error(err))
			_ = c.Error(err)
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"command": cmd.Name, "result": result})
}

func commandStatus(err error) int {
	switch {
	case errors.Is(err, commands.ErrUnknownCommand), errors.Is(err, commands.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, refresh.ErrUnknownSource):
		return http.StatusNotFound
	case errors.Is(err, refresh.ErrTickInProgress), errors.Is(err, refresh.ErrLockNotAcquired):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func setCollectionHeaders(c *gin.Context, etag string, first, last, total int) {
	header := c.Writer.Header()
	header.Set("Access-Control-Expose-Headers", "ETag, X-Total-Count, Content-Range")
	header.Set("ETag", etag)
	header.Set("X-Total-Count", strconv.Itoa(total))
	if last < first {
		header.Set("Content-Range", fmt.Sprintf("items */%d", total))
		return
	}
	header.Set("Content-Range", fmt.Sprintf("items %d-%d/%d", first, last, total))
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
