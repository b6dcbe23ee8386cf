package apis

const (
	DefaultEmailHost = "smtp.gmail.com"
	DefaultEmailPort = 587
)

// Settings holds the datasource credentials used to render panels and deliver reports.
type Settings struct {
	GrafanaURL      string `json:"grafanaURL"`
	GrafanaUsername string `json:"grafanaUsername"`
	GrafanaPassword string `json:"grafanaPassword"`
	Email           string `json:"email"`
	EmailPassword   string `json:"emailPassword"`
	EmailHost       string `json:"emailHost"`
	EmailPort       int    `json:"emailPort"`
	LarkWebhookURL  string `json:"larkWebhookURL"`
	LarkSecret      string `json:"larkSecret"`
	LarkAppID       string `json:"larkAppID"`
	LarkAppSecret   string `json:"larkAppSecret"`
}

// PluginMeta is the host-managed plugin settings blob.
type PluginMeta struct {
	ID       string                 `json:"id"`
	Enabled  bool                   `json:"enabled"`
	Pinned   bool                   `json:"pinned"`
	JSONData map[string]interface{} `json:"jsonData"`
}

func NewSettings() *Settings {
	return &Settings{
		EmailHost: DefaultEmailHost,
		EmailPort: DefaultEmailPort,
	}
}

// PluginMetaUpdate is the body of a plugin meta update. Nil fields keep
// their stored value.
type PluginMetaUpdate struct {
	Enabled  *bool                  `json:"enabled,omitempty"`
	Pinned   *bool                  `json:"pinned,omitempty"`
	JSONData map[string]interface{} `json:"jsonData,omitempty"`
}

func NewPluginMeta(id string) *PluginMeta {
	return &PluginMeta{
		ID:       id,
		JSONData: map[string]interface{}{},
	}
}

// Redacted returns a copy without passwords and secrets.
func (s *Settings) Redacted() *Settings {
	c := *s
	c.GrafanaPassword = ""
	c.EmailPassword = ""
	c.LarkSecret = ""
	c.LarkAppSecret = ""
	return &c
}
