// Skeetsweep is a scheduled maintenance tool for a Bluesky account. It
// archives the account's full repo and blobs locally, then deletes posts
// that have gone stale or viral and removes stale likes, keeping anything
// self-liked or linking to a protected domain.
//
// Usage:
//
//	# Archive, then delete per the configured thresholds
//	skeetsweep run -s 30 -l 100
//
//	# See what a run would delete, without changing anything
//	skeetsweep plan -s 30 -l 100
//
//	# Archive only
//	skeetsweep archive
//
//	# Run unattended on a cron schedule with Prometheus metrics
//	skeetsweep serve --config /etc/skeetsweep.yaml
//
// Credentials come from BLUESKY_USERNAME and BLUESKY_PASSWORD, the config
// file, or flags; an app password is strongly recommended.
package main

func main() {
	Execute()
}
