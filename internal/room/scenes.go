package room

// Scene is one backdrop of the room
type Scene struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Image   string `json:"image"`
	HasRain bool   `json:"hasRain"`
}

var scenes = []Scene{
	{Index: 0, Name: "Cozy Bedroom", Image: "/images/room-transparent.png", HasRain: true},
	{Index: 1, Name: "Chill City", Image: "https://images.unsplash.com/photo-1519501025264-65ba15a82390?q=80&w=2564&auto=format&fit=crop"},
	{Index: 2, Name: "Lofi Cafe", Image: "https://images.unsplash.com/photo-1554118811-1e0d58224f24?q=80&w=2694&auto=format&fit=crop"},
	{Index: 3, Name: "Forest Cabin", Image: "https://images.unsplash.com/photo-1445964047600-cdbdb873673d?q=80&w=2656&auto=format&fit=crop", HasRain: true},
}

// Scenes returns the scene catalogue in cycling order.
func Scenes() []Scene {
	return append([]Scene(nil), scenes...)
}

// SceneAt returns the scene at index, falling back to the first scene.
func SceneAt(index int) Scene {
	if index < 0 || index >= len(scenes) {
		return scenes[0]
	}
	return scenes[index]
}

// ValidSceneIndex reports whether index names a scene.
func ValidSceneIndex(index int) bool {
	return index >= 0 && index < len(scenes)
}
