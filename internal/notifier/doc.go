// Package notifier provides notification interfaces and implementations for new earthquake records.
//
// The notifier package supports posting earthquake alerts to Twitter. It handles OAuth
// authentication, pacing between posts, and message formatting. A dry-run notifier
// prints the messages instead.
package notifier
