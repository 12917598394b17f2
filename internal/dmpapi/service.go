// Package dmpapi exposes the registry over HTTP.
package dmpapi

import (
	"context"

	v1 "github.com/dmphub-lab/dmphub/internal/api/v1"
	"github.com/dmphub-lab/dmphub/internal/dmp"
	"github.com/dmphub-lab/dmphub/internal/provenance"
	"github.com/gin-gonic/gin"
)

// Registry is the subset of *dmp.Service the handlers call.
type Registry interface {
	Create(ctx context.Context, prov *provenance.Provenance, doc map[string]interface{}) (*v1.Record, error)
	Update(ctx context.Context, prov *provenance.Provenance, id string, doc map[string]interface{}) (*v1.Record, error)
	Tombstone(ctx context.Context, prov *provenance.Provenance, id string) (*v1.Record, error)
	TombstoneDocument(ctx context.Context, prov *provenance.Provenance, doc map[string]interface{}) (*v1.Record, error)
	Get(ctx context.Context, id, version string) (*v1.Record, error)
	ByOwner(ctx context.Context, owner string, page, perPage int) (*dmp.Page, error)
	ByExternalIdentifier(ctx context.Context, prov *provenance.Provenance, localID string) (*v1.Record, error)
}

// ProvenanceResolver maps the verified caller to the provenance it acts as.
type ProvenanceResolver interface {
	Resolve(ctx context.Context, id *provenance.CallerIdentity) (*provenance.Provenance, error)
}

// Service serves the /v1/dmps routes.
type Service struct {
	registry         Registry
	resolver         ProvenanceResolver
	maxBodySizeBytes int
}

// NewService creates the DMP API service.
func NewService(registry Registry, resolver ProvenanceResolver, maxBodySizeMB int) *Service {
	if registry == nil {
		panic("dmpapi: registry must not be nil")
	}
	if resolver == nil {
		panic("dmpapi: resolver must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1
	}
	return &Service{
		registry:         registry,
		resolver:         resolver,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the DMP routes. Identifiers contain slashes, so
// single-plan routes take the rest of the path: /v1/dmps/10.80030/ab12cd34.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	dmps := r.Group("/v1/dmps")
	{
		dmps.GET("", s.ListHandler)
		dmps.POST("", s.CreateHandler)
		// Body form: {"dmp": {"dmp_id": {...}}}
		dmps.DELETE("", s.TombstoneDocumentHandler)

		dmps.GET("/*id", s.GetHandler)
		dmps.PUT("/*id", s.UpdateHandler)
		dmps.DELETE("/*id", s.TombstoneHandler)
	}
}
