package room

import "github.com/anonto42/lofi-room/backend/internal/models"

// View is what the room renders for a profile
type View struct {
	UID        string `json:"uid"`
	IsLightsOn bool   `json:"isLightsOn"`
	Scene      Scene  `json:"scene"`
	// rain audio still has to be audible on the client for rain to show
	IsRaining bool `json:"isRaining"`
}

// ViewOf resolves the stored settings of p into a View.
func ViewOf(p *models.UserProfile) View {
	s := p.Settings()
	scene := SceneAt(s.CurrentSceneIndex)
	return View{
		UID:        p.UID,
		IsLightsOn: s.IsLightsOn,
		Scene:      scene,
		IsRaining:  scene.HasRain,
	}
}
