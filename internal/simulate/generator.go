package simulate

import (
	"math/rand/v2"
	"time"
)

var (
	userAgents = []string{
		"Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
		"Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
	}
	landingPages = []string{"/", "/about", "/projects", "/blog/telemetry-without-cookies"}
	referrers    = []string{"", "https://www.google.com/", "https://news.ycombinator.com/", "https://www.linkedin.com/"}
	sections     = []string{"hero", "about", "experience", "projects", "skills", "contact"}
	locations    = [][2]string{{"DE", "Berlin"}, {"US", "New York"}, {"BR", "São Paulo"}, {"", ""}}
	clicks       = []Click{
		{Type: "click", Target: "resume-button", Label: "Download Resume"},
		{Type: "click", Target: "github-link", Label: "GitHub"},
		{Type: "click", Target: "contact-email", Label: "Email"},
		{Type: "navigation", Target: "/projects", Label: "Projects"},
	}
)

// Dwell bounds in simulated time.
const (
	minDwell = 2 * time.Second
	maxDwell = 20 * time.Second
)

// generatePlans returns n visitor plans drawn from seed.
func generatePlans(n int, seed uint64) []Plan {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	plans := make([]Plan, n)
	for i := range plans {
		plans[i] = generatePlan(rng)
	}
	return plans
}

func generatePlan(rng *rand.Rand) Plan {
	loc := locations[rng.IntN(len(locations))]
	p := Plan{
		UserAgent:   userAgents[rng.IntN(len(userAgents))],
		LandingPage: landingPages[rng.IntN(len(landingPages))],
		Referrer:    referrers[rng.IntN(len(referrers))],
		Country:     loc[0],
		City:        loc[1],
	}

	// Visitors scroll down the page and stop somewhere.
	for _, s := range sections[:1+rng.IntN(len(sections))] {
		p.Visits = append(p.Visits, Visit{
			Section:      s,
			Dwell:        minDwell + time.Duration(rng.Int64N(int64(maxDwell-minDwell))),
			ScrollDepth:  30 + rng.IntN(71),
			Interactions: rng.IntN(3),
		})
	}
	for i := range p.Visits {
		if rng.IntN(4) == 0 {
			c := clicks[rng.IntN(len(clicks))]
			c.After = i
			p.Clicks = append(p.Clicks, c)
		}
	}
	return p
}
