package notifier

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dghubble/go-twitter/twitter" //nolint:staticcheck // Using stable v1.1 API
	"github.com/dghubble/oauth1"
	"github.com/pfrederiksen/phivolcs-events/internal/quake"
	"golang.org/x/time/rate"
)

const (
	// TweetInterval is the minimum spacing between posts
	TweetInterval = 2 * time.Second
	maxTweetLen   = 280
)

// statusUpdater is the part of the Twitter client the notifier uses
type statusUpdater interface {
	Update(status string, params *twitter.StatusUpdateParams) (*twitter.Tweet, *http.Response, error)
}

// TwitterNotifier posts earthquake records to Twitter
type TwitterNotifier struct {
	statuses statusUpdater
	limiter  *rate.Limiter
}

// NewTwitterNotifier creates a new Twitter notifier using environment variables
// Required environment variables:
// - TWITTER_API_KEY
// - TWITTER_API_SECRET
// - TWITTER_ACCESS_TOKEN
// - TWITTER_ACCESS_SECRET
func NewTwitterNotifier() (*TwitterNotifier, error) {
	apiKey := os.Getenv("TWITTER_API_KEY")
	apiSecret := os.Getenv("TWITTER_API_SECRET")
	accessToken := os.Getenv("TWITTER_ACCESS_TOKEN")
	accessSecret := os.Getenv("TWITTER_ACCESS_SECRET")

	if apiKey == "" || apiSecret == "" || accessToken == "" || accessSecret == "" {
		return nil, fmt.Errorf("missing required Twitter credentials in environment variables")
	}

	config := oauth1.NewConfig(apiKey, apiSecret)
	token := oauth1.NewToken(accessToken, accessSecret)
	httpClient := config.Client(oauth1.NoContext, token)
	client := twitter.NewClient(httpClient)

	return newTwitterNotifier(client.Statuses, rate.Every(TweetInterval)), nil
}

func newTwitterNotifier(statuses statusUpdater, limit rate.Limit) *TwitterNotifier {
	return &TwitterNotifier{
		statuses: statuses,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Notify posts one tweet per record, waiting TweetInterval between posts
func (n *TwitterNotifier) Notify(ctx context.Context, records []*quake.Record) error {
	for _, rec := range records {
		if err := n.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting to post: %w", err)
		}

		tweet := formatTweet(rec)
		if _, _, err := n.statuses.Update(tweet, nil); err != nil {
			return fmt.Errorf("failed to post tweet for record %s: %w", rec.Key, err)
		}
	}

	return nil
}

// formatTweet formats a record as a tweet
func formatTweet(rec *quake.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌋 Magnitude %.1f earthquake\n\n", rec.Magnitude)
	if rec.Location != "" {
		fmt.Fprintf(&b, "📍 %s\n", rec.Location)
	}
	fmt.Fprintf(&b, "🕒 %s\n", rec.OccurredAt.In(quake.SourceLocation).Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "↕️ Depth %.0f km (%.2f°N, %.2f°E)\n", rec.Depth, rec.Latitude, rec.Longitude)
	b.WriteString("\n🔗 earthquake.phivolcs.dost.gov.ph\n")
	b.WriteString("\n#PHIVOLCS #Lindol #Earthquake")

	tweet := b.String()

	// Twitter limit is 280 characters
	if utf8.RuneCountInString(tweet) > maxTweetLen {
		runes := []rune(tweet)
		tweet = string(runes[:maxTweetLen-3]) + "..."
	}

	return tweet
}
