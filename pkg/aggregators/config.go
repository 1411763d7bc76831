package aggregators

type AggregatorConfig struct {
	// MaxFrames caps the stored frame sequence; ~2000 frames is ~42 s at a
	// 1024-sample window and 48 kHz. Running statistics keep counting past
	// the cap.
	MaxFrames int
}

const defaultMaxFrames = 2000
