// Package model holds the data types shared across the bot: platforms,
// repositories, jobs, results, and the adapter-level check-run model.
package model

// Platform is a closed enumeration of supported code-hosting platforms.
type Platform string

const (
	GitHub    Platform = "github"
	GitLab    Platform = "gitlab"
	Bitbucket Platform = "bitbucket"
	Codeberg  Platform = "codeberg"
)

// Valid reports whether p is one of the four known platforms.
func (p Platform) Valid() bool {
	switch p {
	case GitHub, GitLab, Bitbucket, Codeberg:
		return true
	default:
		return false
	}
}
