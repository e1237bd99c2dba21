package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/notedesk/internal/listsync"
	"github.com/desertthunder/notedesk/internal/models"
	"github.com/desertthunder/notedesk/internal/shared"
)

// ResourceFetcher loads pages of one resource and decodes the items as T.
type ResourceFetcher[T any] struct {
	api      *AdminAPI
	resource models.Resource
}

// NewResourceFetcher creates a fetcher for resource.
func NewResourceFetcher[T any](api *AdminAPI, resource models.Resource) *ResourceFetcher[T] {
	return &ResourceFetcher[T]{api: api, resource: resource}
}

// Fetch implements [listsync.Fetcher].
func (f *ResourceFetcher[T]) Fetch(ctx context.Context, req listsync.Request) (listsync.Page[T], error) {
	resource := req.Resource
	if resource == "" {
		resource = string(f.resource)
	}

	list, err := f.api.List(ctx, resource, req.Query())
	if err != nil {
		return listsync.Page[T]{}, err
	}

	var items []T
	if len(list.Items) > 0 && string(list.Items) != "null" {
		if err := json.Unmarshal(list.Items, &items); err != nil {
			return listsync.Page[T]{}, fmt.Errorf("%w: failed to decode %s: %v", shared.ErrServer, resource, err)
		}
	}

	totalPages := list.Pagination.TotalPages
	if totalPages == 0 && list.Pagination.TotalItems > 0 {
		totalPages = models.TotalPagesFor(list.Pagination.TotalItems, req.PageSize)
	}
	return listsync.Page[T]{Items: items, TotalPages: totalPages, TotalItems: list.Pagination.TotalItems}, nil
}
