package handlers

import (
	"io"
	"net/http"

	"github.com/quantgrid/oppscan/internal/rules"
	"github.com/quantgrid/oppscan/pkg/logger"
)

// maxRulesBody bounds the accepted rules upload size.
const maxRulesBody = 1 << 20

// RulesHandler serves the active rule set and accepts replacements.
// Updates are validated before touching disk; a saved rule set takes
// effect on the next process start.
type RulesHandler struct {
	path   string
	logger *logger.Logger
}

// NewRulesHandler creates a rules handler over the rules file at path.
func NewRulesHandler(path string, log *logger.Logger) *RulesHandler {
	return &RulesHandler{path: path, logger: log}
}

// Get returns the current rule set with its hash and warnings.
// GET /api/rules
func (h *RulesHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, _, err := rules.Load(h.path)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load rules")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	hash, err := rules.Hash(cfg)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":    cfg,
		"hash":     hash,
		"warnings": rules.Warn(cfg),
	})
}

// Update validates the submitted YAML and saves it as the new rule
// set. Invalid rules never reach disk.
// PUT /api/rules
func (h *RulesHandler) Update(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRulesBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body: " + err.Error()})
		return
	}

	if _, err := rules.Parse(body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	cfg, err := rules.Save(h.path, body)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	hash, err := rules.Hash(cfg)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.logger.WithField("hash", hash).Info("Rules updated")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "saved",
		"hash":     hash,
		"warnings": rules.Warn(cfg),
		"note":     "new rules apply from the next process start",
	})
}
