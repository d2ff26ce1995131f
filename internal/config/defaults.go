package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Corpus.Dir == "" {
		cfg.Corpus.Dir = "./data/sop_raw"
	}
	if cfg.Corpus.Extensions == nil {
		cfg.Corpus.Extensions = []string{".md", ".txt"}
	}
	if cfg.Index.VectorPath == "" {
		cfg.Index.VectorPath = "./data/index/segments.vec"
	}
	if cfg.Index.MetadataPath == "" {
		cfg.Index.MetadataPath = "./data/index/segments.db"
	}
	if cfg.Segmenter.SegmentSize == 0 {
		cfg.Segmenter.SegmentSize = 120
	}
	if cfg.Segmenter.SegmentOverlap == 0 {
		cfg.Segmenter.SegmentOverlap = 20
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 30
	}
	if cfg.Embedding.MaxAttempts == 0 {
		cfg.Embedding.MaxAttempts = 3
	}
	if cfg.Embedding.MaxInputChars == 0 {
		cfg.Embedding.MaxInputChars = 8000
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Answer.Model == "" {
		cfg.Answer.Model = "gpt-4.1-mini"
	}
	if cfg.Answer.TimeoutSeconds == 0 {
		cfg.Answer.TimeoutSeconds = 60
	}
	if cfg.Answer.MaxAttempts == 0 {
		cfg.Answer.MaxAttempts = 3
	}
	if cfg.Answer.DefaultTopK == 0 {
		cfg.Answer.DefaultTopK = 5
	}
	if cfg.Answer.MaxTopK == 0 {
		cfg.Answer.MaxTopK = 100
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 400
	}
}
