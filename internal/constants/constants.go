// Package constants provides named constants used throughout the strangeloop codebase.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Grid and coordinate-space defaults
const (
	// DefaultGridSize is the number of units along each side of the grid (40x40 = 1600 units).
	DefaultGridSize = 40

	// MaxGridSize bounds the grid so a misconfigured run cannot allocate millions of units.
	MaxGridSize = 512

	// DefaultCanvasSize is the side length of the coordinate space unit positions live in.
	// Cell pitch is DefaultCanvasSize / DefaultGridSize.
	DefaultCanvasSize = 600.0
)

// Topology generation constants
const (
	// DefaultNeighborProbability is the chance each admitted Moore neighbor gets a connection.
	DefaultNeighborProbability = 0.5

	// DefaultLongRangeProbability is the chance a unit gets one extra link to a random unit.
	DefaultLongRangeProbability = 0.03

	// DefaultThresholdMin is the lower bound of the uniform threshold distribution.
	DefaultThresholdMin = 0.6

	// DefaultThresholdSpan is the width of the threshold distribution: thresholds fall in [0.6, 1.0).
	DefaultThresholdSpan = 0.4
)

// Stimulus and scheduling constants
const (
	// DefaultStimulusRadiusSquared is the squared blast radius of a stimulus (radius ~63.2).
	DefaultStimulusRadiusSquared = 4000.0

	// DefaultFrameRate is the number of frames per second the loop schedules.
	DefaultFrameRate = 60
)

// Emergence smoothing constants.
// Tuned so a sustained burst ramps the displayed level over roughly one to two seconds at 60 fps.
const (
	// DefaultSmoothingRetain is the fraction of the previous level kept each tick.
	DefaultSmoothingRetain = 0.95

	// DefaultSmoothingBlend is the fraction of the raw metric blended in each tick.
	DefaultSmoothingBlend = 0.05
)

// Control surface constants
const (
	// DefaultServerAddr binds the HTTP control surface to loopback on an OS-assigned port.
	DefaultServerAddr = "localhost:0"

	// MaxFrameRate bounds the frame loop; faster tickers only burn CPU.
	MaxFrameRate = 1000

	// MaxStepsPerRequest bounds a single manual step request.
	MaxStepsPerRequest = 1000
)

// Scenario constants
const (
	// MaxScenarioTicks bounds a headless run (about 14 minutes of frames at 60 fps).
	MaxScenarioTicks = 50000
)
