package prefabs

import (
	"embed"
)

// DefaultLevel is the embedded level loaded when no path is given.
const DefaultLevel = "levels/default.yaml"

//go:embed levels/*.yaml levels/scripts/*.tengo
var LevelsFS embed.FS
