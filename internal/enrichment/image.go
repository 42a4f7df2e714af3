package enrichment

import (
	"context"

	"event-enricher/internal/common/cache"
	commonhttp "event-enricher/internal/common/http"
	"event-enricher/internal/common/logging"
	"event-enricher/internal/models"
	"event-enricher/internal/storage"
)

// ImageFinder returns the image URL found on an event's detail page
type ImageFinder interface {
	FindImage(ctx context.Context, link string) (string, error)
}

// ImageQueue fills the event image from its detail page
type ImageQueue struct {
	*Queue[string]
	store  storage.Store
	finder ImageFinder
	memo   cache.Cache
}

// NewImageQueue builds the image queue. memo may be nil.
func NewImageQueue(store storage.Store, finder ImageFinder, memo cache.Cache, opts Options) *ImageQueue {
	if opts.Name == "" {
		opts.Name = "image"
	}
	i := &ImageQueue{store: store, finder: finder, memo: memo}
	i.Queue = NewQueue[string](opts, i.handle, ServerErrorPolicy(), nil)
	return i
}

// Request returns the image already stored for the event and queues a scrape
// of link when there is none
func (i *ImageQueue) Request(ctx context.Context, eventID, link string) (models.PartialEnrichment, error) {
	known, err := persisted(ctx, i.store, eventID)
	if err != nil {
		return known, err
	}
	if known.HasImage() {
		return known, nil
	}
	i.Enqueue(eventID, eventID+"|"+link, link)
	return known, nil
}

func (i *ImageQueue) handle(ctx context.Context, req Request[string]) error {
	imageURL, err := i.lookup(ctx, req.Params)
	if err != nil {
		return err
	}
	return i.store.UpdateImage(ctx, req.SubjectID, imageURL)
}

func (i *ImageQueue) lookup(ctx context.Context, link string) (string, error) {
	key := cache.ImagePrefix + link

	var imageURL string
	if i.memo != nil && cache.GetJSON(ctx, i.memo, key, &imageURL) && imageURL != "" {
		return imageURL, nil
	}

	imageURL, err := i.finder.FindImage(ctx, link)
	if err != nil {
		// a page that does not exist will not grow an image
		upstream, ok := commonhttp.AsUpstream(err)
		if !ok || !upstream.IsClientError() {
			return "", err
		}
		imageURL = ""
	}
	if imageURL == "" {
		imageURL = models.ImageNotFoundURL
	}

	if i.memo != nil {
		if err := cache.SetJSON(ctx, i.memo, key, imageURL, MemoTTL); err != nil {
			i.logger.Warn("Failed to memoize image lookup", logging.Err(err))
		}
	}
	return imageURL, nil
}
