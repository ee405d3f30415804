package cargo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chachabrian/hacktruck-backend/internal/models"
)

const (
	NoMatchMessage      = "Tidak ada cargo yang memenuhi kriteria Anda. Coba ubah kriteria pencarian."
	GenericErrorMessage = "Terjadi kesalahan saat mencari rekomendasi."

	DefaultModelTimeout = 15 * time.Second
)

var errBlankResponse = errors.New("model returned an empty response")

// Generator produces free text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RecommendationResult is what the recommendation endpoint returns. Posts is
// never nil so it always encodes as a JSON array.
type RecommendationResult struct {
	Recommendation string           `json:"recommendation"`
	Posts          []models.Listing `json:"posts"`
}

// Composer turns a filtered candidate set into a recommendation, asking the
// language model first and falling back to a ranking of its own.
type Composer struct {
	generator Generator
	timeout   time.Duration
	log       *zap.Logger
}

func NewComposer(generator Generator, timeout time.Duration, log *zap.Logger) *Composer {
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Composer{generator: generator, timeout: timeout, log: log}
}

// Compose never fails. Model errors, timeouts and blank answers are logged
// and replaced by the fallback text.
func (c *Composer) Compose(ctx context.Context, query string, candidates []models.Listing) RecommendationResult {
	if len(candidates) == 0 {
		return RecommendationResult{Recommendation: NoMatchMessage, Posts: []models.Listing{}}
	}

	posts := make([]models.Listing, len(candidates))
	copy(posts, candidates)

	text, err := c.generate(ctx, BuildPrompt(query, posts))
	if err != nil {
		c.log.Warn("language model unavailable, using fallback recommendation",
			zap.Error(err),
			zap.Int("candidates", len(posts)),
		)
		return RecommendationResult{Recommendation: FallbackRecommendation(posts), Posts: posts}
	}
	return RecommendationResult{Recommendation: text, Posts: posts}
}

// ComposeLocal answers from the local ranking without asking the model.
func (c *Composer) ComposeLocal(candidates []models.Listing) RecommendationResult {
	if len(candidates) == 0 {
		return RecommendationResult{Recommendation: NoMatchMessage, Posts: []models.Listing{}}
	}
	posts := make([]models.Listing, len(candidates))
	copy(posts, candidates)
	return RecommendationResult{Recommendation: FallbackRecommendation(posts), Posts: posts}
}

func (c *Composer) generate(ctx context.Context, prompt string) (string, error) {
	if c.generator == nil {
		return "", errors.New("no language model configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errBlankResponse
	}
	return text, nil
}

// BuildPrompt embeds the user's request and every candidate in the text sent
// to the model.
func BuildPrompt(query string, candidates []models.Listing) string {
	blocks := make([]string, len(candidates))
	for i, l := range candidates {
		blocks[i] = describeListing(i+1, l)
	}
	return fmt.Sprintf(
		"User is looking for: %q\n"+
			"Based on their needs, I've found %d matching services.\n"+
			"Please analyze the following options, recommend the best one and explain why it fits. Answer in Indonesian.\n\n%s",
		query, len(candidates), strings.Join(blocks, "\n"),
	)
}

// RankListings returns a copy of listings ordered by rating, highest first,
// then by price, cheapest first. Unrated listings count as rating 0. Ties
// keep their input order.
func RankListings(listings []models.Listing) []models.Listing {
	ranked := make([]models.Listing, len(listings))
	copy(ranked, listings)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := ranked[i].RatingValue(), ranked[j].RatingValue()
		if ri != rj {
			return ri > rj
		}
		return ranked[i].Price < ranked[j].Price
	})
	return ranked
}

// FallbackRecommendation describes the top-ranked candidate without the
// model. candidates must not be empty.
func FallbackRecommendation(candidates []models.Listing) string {
	best := RankListings(candidates)[0]
	return fmt.Sprintf(
		"Rekomendasi terbaik untuk Anda adalah %s untuk rute %s ke %s dengan truk %s. Harga: %s, rating: %s. Dari %d pilihan yang cocok, layanan ini memiliki rating tertinggi dengan harga paling bersaing.",
		orDefault(best.CompanyName, unknownValue),
		orDefault(best.Origin, unknownValue),
		orDefault(best.Destination, unknownValue),
		orDefault(string(best.TruckType), unknownValue),
		FormatRupiah(best.Price),
		formatRating(best.Rating),
		len(candidates),
	)
}
