package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Launchpad/internal/clusterconfig"
	"github.com/shaiso/Launchpad/internal/domain"
)

// ListConfigurations возвращает список конфигураций.
// GET /api/v1/configurations?namespace=...
func (h *Handler) ListConfigurations(w http.ResponseWriter, r *http.Request) {
	configs, err := h.configs.List(r.Context(), r.URL.Query().Get("namespace"))
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ConfigurationSummary, len(configs))
	for i, c := range configs {
		result[i] = ConfigurationSummary{
			Namespace:   c.Namespace,
			Name:        c.Name,
			Description: c.Description,
			UpdatedAt:   c.UpdatedAt,
		}
	}

	List(w, result, len(result))
}

// GetConfiguration возвращает конфигурацию с документом.
// GET /api/v1/configurations/{namespace}/{name}
func (h *Handler) GetConfiguration(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.configs.Get(r.Context(), r.PathValue("namespace"), r.PathValue("name"))
	if HandleRepoError(w, h.logger, err, "configuration not found") {
		return
	}

	Success(w, ConfigurationFromDomain(*cfg))
}

// PutConfiguration создаёт или заменяет конфигурацию.
// PUT /api/v1/configurations/{namespace}/{name}
//
// Описание (definition) собирается на сервере с подстановкой параметров,
// готовый документ (record) проверяется восстановлением реестра переопределений.
func (h *Handler) PutConfiguration(w http.ResponseWriter, r *http.Request) {
	namespace, name := r.PathValue("namespace"), r.PathValue("name")

	var req PutConfigurationRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if (req.Definition == nil) == (req.Record == nil) {
		BadRequest(w, "exactly one of definition or record is required")
		return
	}

	var rec *clusterconfig.Record
	if req.Definition != nil {
		def := *req.Definition
		def.Name, def.Namespace = name, namespace
		b, err := def.Build(r.Context(), h.resolver)
		if err != nil {
			HandleBuildError(w, err)
			return
		}
		rec = b.Record()
	} else {
		rec = req.Record
		rec.ConfigurationName, rec.Namespace = name, namespace
		if _, err := clusterconfig.FromRecord(rec); err != nil {
			HandleBuildError(w, err)
			return
		}
	}

	description := req.Description
	if description == "" {
		description = rec.Description
	}
	rec.Description = description

	doc, err := json.Marshal(rec)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	cfg := &domain.Configuration{
		Namespace:   namespace,
		Name:        name,
		Description: description,
		Document:    doc,
	}
	if err := h.configs.Put(r.Context(), cfg); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("configuration saved",
		"namespace", namespace,
		"name", name,
		"artifacts", len(rec.ConfigurationArtifacts),
	)

	Success(w, ConfigurationFromDomain(*cfg))
}

// DeleteConfiguration удаляет конфигурацию.
// DELETE /api/v1/configurations/{namespace}/{name}
func (h *Handler) DeleteConfiguration(w http.ResponseWriter, r *http.Request) {
	err := h.configs.Delete(r.Context(), r.PathValue("namespace"), r.PathValue("name"))
	if HandleRepoError(w, h.logger, err, "configuration not found") {
		return
	}

	NoContent(w)
}

// ResolveConfiguration применяет переопределения к хранимой конфигурации
// и возвращает итоговый документ кластера. Хранимая конфигурация не меняется.
// POST /api/v1/configurations/{namespace}/{name}/resolve
func (h *Handler) ResolveConfiguration(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	cfg, err := h.configs.Get(r.Context(), r.PathValue("namespace"), r.PathValue("name"))
	if HandleRepoError(w, h.logger, err, "configuration not found") {
		return
	}

	rec, err := clusterconfig.ParseRecord(cfg.Document)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	b, err := clusterconfig.FromRecord(rec)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	tree, err := b.Resolve(req.Overrides)
	if err != nil {
		HandleBuildError(w, err)
		return
	}

	Success(w, ResolveResponse{Configuration: tree})
}
