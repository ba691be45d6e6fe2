package logger

// Standard field keys for structured logging across the codec pipeline.
// Use these consistently across log statements so stage-boundary logs stay
// queryable regardless of which package emitted them.
const (
	// ========================================================================
	// Pipeline stage identification
	// ========================================================================
	KeyStage = "stage" // envelope, privkey, chunk, fec, framer, frame, manifest
	KeyOp    = "op"    // seal, unseal, encode, decode, assemble, disassemble

	// ========================================================================
	// File identification
	// ========================================================================
	KeyInputPath    = "input_path"
	KeyOutputPath   = "output_path"
	KeyManifestPath = "manifest_path"
	KeyFileSHA256   = "file_sha256"
	KeySize         = "size"

	// ========================================================================
	// Chunking / FEC
	// ========================================================================
	KeyChunkIndex    = "chunk_index"
	KeyChunkSize     = "chunk_size"
	KeyDataBlocks    = "data_blocks"
	KeyParityBlocks  = "parity_blocks"
	KeyFECRatio      = "fec_ratio"
	KeyBlocksPresent = "blocks_present"
	KeyLossFraction  = "loss_fraction"

	// ========================================================================
	// Frame assembly
	// ========================================================================
	KeyFrameIndex   = "frame_index"
	KeyFrameCount   = "frame_count"
	KeyGrid         = "grid"
	KeyFPS          = "fps"
	KeyPrivFrameIdx = "privkey_frame_index"
	KeyObfuscation  = "obfuscation"
	KeyTileIndex    = "tile_index"

	// ========================================================================
	// Errors / duration
	// ========================================================================
	KeyError      = "error"
	KeyDurationMs = "duration_ms"
)
