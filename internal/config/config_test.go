package config

import "testing"

func TestLoadReturnsDefaults(t *testing.T) {
	cfg := Load()
	if cfg.DiscoveryPort != 8888 {
		t.Fatalf("DiscoveryPort = %d, want 8888", cfg.DiscoveryPort)
	}
	if cfg.ChunkSize != 256_000 {
		t.Fatalf("ChunkSize = %d, want 256000", cfg.ChunkSize)
	}
	if cfg.WorkerPoolSize != 4 {
		t.Fatalf("WorkerPoolSize = %d, want 4", cfg.WorkerPoolSize)
	}
}

func TestUpdateMutatesACopy(t *testing.T) {
	before := Load()

	Update(func(c *Config) { c.WorkerPoolSize = 8 })

	after := Load()
	if after.WorkerPoolSize != 8 {
		t.Fatalf("WorkerPoolSize after Update = %d, want 8", after.WorkerPoolSize)
	}
	if before.WorkerPoolSize != 4 {
		t.Fatalf("previously-loaded Config mutated in place: WorkerPoolSize = %d", before.WorkerPoolSize)
	}

	Swap(defaultConfig())
}

func TestSwapReplacesWholeConfig(t *testing.T) {
	Swap(Config{WorkerPoolSize: 99})
	if Load().WorkerPoolSize != 99 {
		t.Fatalf("WorkerPoolSize after Swap = %d, want 99", Load().WorkerPoolSize)
	}

	Swap(defaultConfig())
	if Load().WorkerPoolSize != 4 {
		t.Fatalf("WorkerPoolSize after restore = %d, want 4", Load().WorkerPoolSize)
	}
}
