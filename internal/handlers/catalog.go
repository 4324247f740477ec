package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/termgate/termgate/internal/database"
)

// GetCatalog returns the command reference grouped by category. An optional
// ?category= query narrows the result to one group.
// GET /api/v1/catalog
func GetCatalog(w http.ResponseWriter, r *http.Request) {
	if category := r.URL.Query().Get("category"); category != "" {
		cmds, err := database.ListCatalogByCategory(category)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list catalog")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"catalog": map[string][]database.CatalogCommand{category: cmds},
		})
		return
	}

	cmds, err := database.ListCatalog()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list catalog")
		return
	}
	categories, err := database.CatalogCategories()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}

	grouped := make(map[string][]database.CatalogCommand, len(categories))
	for _, c := range cmds {
		grouped[c.Category] = append(grouped[c.Category], c)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"catalog":    grouped,
	})
}

// CreateCatalogEntry adds a command to the reference. The catalog is not a
// permission list: adding a command here does not make it executable past
// the deny-list.
// POST /api/v1/catalog
func CreateCatalogEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category    string `json:"category"`
		Command     string `json:"command"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Category) == "" || strings.TrimSpace(req.Command) == "" {
		writeError(w, http.StatusBadRequest, "category and command are required")
		return
	}

	c := database.CatalogCommand{
		Category:    req.Category,
		Command:     req.Command,
		Description: req.Description,
	}
	if err := database.CreateCatalogCommand(&c); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			writeError(w, http.StatusConflict, "Command already in catalog")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create catalog entry")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// macroInfo is a macro with its command list decoded.
type macroInfo struct {
	ID          uint     `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Commands    []string `json:"commands"`
}

// ListMacros returns all stored macros with their command sequences.
// GET /api/v1/macros
func ListMacros(w http.ResponseWriter, r *http.Request) {
	macros, err := database.ListMacros()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list macros")
		return
	}

	result := make([]macroInfo, 0, len(macros))
	for _, m := range macros {
		cmds, err := m.CommandList()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Malformed macro command list")
			return
		}
		result = append(result, macroInfo{
			ID:          m.ID,
			Name:        m.Name,
			Description: m.Description,
			Commands:    cmds,
		})
	}
	writeJSON(w, http.StatusOK, map[string][]macroInfo{"macros": result})
}

// CreateMacro stores a new named command sequence.
// POST /api/v1/macros
func CreateMacro(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Commands    []string `json:"commands"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || len(req.Commands) == 0 {
		writeError(w, http.StatusBadRequest, "name and commands are required")
		return
	}
	if _, err := database.GetMacroByName(req.Name); err == nil {
		writeError(w, http.StatusConflict, "Macro name already exists")
		return
	}

	m := database.Macro{Name: req.Name, Description: req.Description}
	if err := m.SetCommands(req.Commands); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid command list")
		return
	}
	if err := database.CreateMacro(&m); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create macro")
		return
	}

	writeJSON(w, http.StatusCreated, macroInfo{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Commands:    req.Commands,
	})
}
