package surface

import (
	"fmt"

	"github.com/taigrr/showroom/pkg/backend"
	"github.com/taigrr/showroom/pkg/scene"
)

// Stats counts frames.
type Stats struct {
	Rendered uint64
	// Skipped counts ticks that found a submission still in flight.
	Skipped uint64
}

// Status describes the surface for its HUD.
type Status struct {
	State        scene.State
	Backend      backend.Kind
	HasBackend   bool
	GPUAvailable bool
	Source       string
	// Error is the last asset load failure, cleared by a successful load.
	Error string
	Stats Stats
	Pose  scene.Pose
}

// String renders the status line.
func (st Status) String() string {
	if st.Error != "" {
		return st.Error
	}
	if st.State == scene.StateLoadingEnvironment {
		return "loading environment..."
	}
	backendName := "none"
	if st.HasBackend {
		backendName = st.Backend.String()
	}
	return fmt.Sprintf("%s | frames %d | skipped %d", backendName, st.Stats.Rendered, st.Stats.Skipped)
}
