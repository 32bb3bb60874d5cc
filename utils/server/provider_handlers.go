package server

import (
	"net/http"

	"github.com/kris-hansen/summaprompt/utils/config"
	"github.com/kris-hansen/summaprompt/utils/models"
)

// providerEnabled reports whether a provider can serve calls with the
// current configuration
func (s *Server) providerEnabled(name string) bool {
	if config.MockMode() {
		return true
	}
	switch name {
	case "mock":
		return true
	case "ollama":
		_, ok := s.envConfig.Providers[name]
		return ok
	}
	return s.envConfig.APIKey(name) != ""
}

// handleGetProviders lists the registered providers, their configured
// models and whether they have credentials
func (s *Server) handleGetProviders(w http.ResponseWriter, r *http.Request) {
	providers := []ProviderInfo{}
	for _, meta := range models.GetAvailableProviders() {
		info := ProviderInfo{
			Name:        meta.Name,
			Description: meta.Description,
			Models:      []string{},
			Enabled:     s.providerEnabled(meta.Name),
		}
		if pc, err := s.envConfig.GetProviderConfig(meta.Name); err == nil {
			info.Models = getModelNames(pc.Models)
		}
		providers = append(providers, info)
	}
	writeJSON(w, http.StatusOK, ProviderListResponse{Success: true, Providers: providers})
}

// handleGetAvailableModels asks the provider which models it serves
func (s *Server) handleGetAvailableModels(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if models.GetProviderByName(name) == nil {
		sendJSONError(w, http.StatusNotFound, "Provider '"+name+"' not found")
		return
	}
	names, err := s.models.Models(r.Context(), name)
	if err != nil {
		sendJSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ModelListResponse{Success: true, Provider: name, Models: names})
}

func getModelNames(models []config.Model) []string {
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	return names
}
