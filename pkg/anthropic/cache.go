package anthropic

// BuildCachedSystemBlocks constructs a system block with a cache breakpoint.
// Extraction prompts share one long instruction block across every target in
// a job, so later calls read it from the prompt cache. ttl is "5m" or "1h".
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	if ttl == "" {
		ttl = "5m"
	}
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: ttl,
			},
		},
	}
}
