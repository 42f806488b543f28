package handlers

import (
	"sort"

	"github.com/gofiber/fiber/v2"
)

// Reloader re-reads a file-backed configuration source.
type Reloader interface {
	Reload() error
}

// ConfigHandler reloads rule and contact files.
type ConfigHandler struct {
	names   []string
	sources map[string]Reloader
}

// NewConfigHandler constructs handler. Nil sources are ignored.
func NewConfigHandler(sources map[string]Reloader) *ConfigHandler {
	filtered := make(map[string]Reloader, len(sources))
	for name, src := range sources {
		if src != nil {
			filtered[name] = src
		}
	}
	names := make([]string, 0, len(filtered))
	for name := range filtered {
		names = append(names, name)
	}
	sort.Strings(names)
	return &ConfigHandler{names: names, sources: filtered}
}

// Reload POST /config/reload. Sources reload in name order; the first
// failure aborts and earlier sources keep their new contents.
func (h *ConfigHandler) Reload(c *fiber.Ctx) error {
	reloaded := make([]string, 0, len(h.sources))
	for _, name := range h.names {
		if err := h.sources[name].Reload(); err != nil {
			return err
		}
		reloaded = append(reloaded, name)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"reloaded": reloaded}})
}
