package buildinfo

// Set via -ldflags at build time.
var (
	Version    = "v0.1.0"
	CommitHash = "unknown"
)

type Info struct {
	About      string `json:"about,omitempty"`
	Service    string `json:"service,omitempty"`
	Version    string `json:"version,omitempty"`
	CommitHash string `json:"commit_hash,omitempty"`
}

func GetBuildInfo() Info {
	return Info{
		About:      "https://github.com/grantd/grantd",
		Service:    "grantd",
		Version:    Version,
		CommitHash: CommitHash,
	}
}
