package config

// BrowserConfig controls the headless browser and its proxies.
type BrowserConfig struct {
	Headless          bool     `yaml:"headless"`
	UserAgent         string   `yaml:"user_agent"`
	Locale            string   `yaml:"locale"`
	TimezoneID        string   `yaml:"timezone_id"`
	ExecPath          string   `yaml:"exec_path"`
	WindowWidth       int      `yaml:"window_width"`
	WindowHeight      int      `yaml:"window_height"`
	MaxPages          int      `yaml:"max_pages"`
	NavigationTimeout Duration `yaml:"navigation_timeout"`
	BaseURL           string   `yaml:"base_url"`
	// Proxies are "scheme://host:port [user pass]" entries.
	Proxies   []string `yaml:"proxies"`
	ProxyWait Duration `yaml:"proxy_wait"`
}

func defaultBrowser() BrowserConfig {
	return BrowserConfig{
		Headless:          true,
		Locale:            defaultBrowserLocale,
		TimezoneID:        defaultBrowserTimezone,
		WindowWidth:       defaultBrowserWidth,
		WindowHeight:      defaultBrowserHeight,
		MaxPages:          defaultBrowserMaxPages,
		NavigationTimeout: defaultNavTimeout,
		BaseURL:           defaultBaseURL,
		ProxyWait:         defaultProxyWait,
	}
}

func (b *BrowserConfig) applyEnv() {
	b.Headless = boolEnvOrDefault(envBrowserHeadless, b.Headless)
	b.UserAgent = envOrDefault(envBrowserUserAgent, b.UserAgent)
	b.Locale = envOrDefault(envBrowserLocale, b.Locale)
	b.TimezoneID = envOrDefault(envBrowserTimezone, b.TimezoneID)
	b.ExecPath = envOrDefault(envBrowserExecPath, b.ExecPath)
	b.WindowWidth = intEnvOrDefault(envBrowserWidth, b.WindowWidth)
	b.WindowHeight = intEnvOrDefault(envBrowserHeight, b.WindowHeight)
	b.MaxPages = intEnvOrDefault(envBrowserMaxPages, b.MaxPages)
	b.NavigationTimeout = durationEnvOrDefault(envNavTimeout, b.NavigationTimeout)
	b.BaseURL = envOrDefault(envBrowserBaseURL, b.BaseURL)
	b.Proxies = listEnvOrDefault(envProxies, b.Proxies)
	b.ProxyWait = durationEnvOrDefault(envProxyWait, b.ProxyWait)
}
