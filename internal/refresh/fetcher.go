package refresh

import (
	"context"

	"github.com/jonesrussell/north-cloud/feeds/internal/feed"
)

//go:generate mockgen -source=fetcher.go -destination=../../testutils/mocks/refresh/fetcher.go -package=refresh

// Fetcher retrieves a source's decoded document. Implementations report
// failure through ok == false and handle their own logging.
type Fetcher interface {
	Fetch(ctx context.Context, src feed.Source) (feed.Document, bool)
}
