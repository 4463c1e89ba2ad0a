package profiles

// DefaultProfiles returns the built-in specialist profiles in registration
// order. Order breaks routing ties.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			ID:           "data-analyzer",
			DisplayName:  "Data Analyzer",
			Capabilities: []string{"data validation", "excel and csv processing", "constraint mapping analysis", "data quality checks"},
			Focus:        "Excel constraint mappings, SKU data, shelf constraints",
			Context:      "Data files and analysis scripts in the project",
		},
		{
			ID:           "dashboard-developer",
			DisplayName:  "Dashboard Developer",
			Capabilities: []string{"streamlit apps", "interactive dashboards", "charts and visualization", "ui layout"},
			Focus:        "UI components, data visualization, user interaction patterns",
			Context:      "Dashboard code, UI components and visualization helpers",
		},
		{
			ID:           "optimization-expert",
			DisplayName:  "Optimization Expert",
			Capabilities: []string{"mathematical modeling", "constraint programming", "solver tuning", "algorithm design"},
			Focus:        "Mathematical models, constraint definitions, optimization algorithms",
			Context:      "Optimization models, solver configuration and constraint definitions",
		},
		{
			ID:           "data-science-researcher",
			DisplayName:  "Data Science Researcher",
			Capabilities: []string{"statistical modeling", "hypothesis testing", "experimental design", "literature review"},
			Focus:        "Research methodologies, advanced statistics, mathematical modeling, hypothesis testing",
			Context:      "Research notes, notebooks and statistical analyses",
		},
		{
			ID:           "ml-concept-tester",
			DisplayName:  "ML Concept Tester",
			Capabilities: []string{"model prototyping", "ml experiments", "llm evaluation", "performance testing"},
			Focus:        "ML/DL model development, AI experimentation, concept validation, performance testing",
			Context:      "Experiment scripts, model checkpoints and evaluation results",
		},
		{
			ID:           "strategic-planner",
			DisplayName:  "Strategic Planner",
			Capabilities: []string{"project planning", "roadmaps", "iteration reflection", "progress tracking"},
			Focus:        "Project planning, iteration reflection, memory management, constraint tracking",
			Context:      "Plans, decisions, reflections and constraints in project memory",
		},
		{
			ID:           "meta-orchestrator",
			DisplayName:  "Meta Orchestrator",
			Capabilities: []string{"task decomposition", "specialist coordination", "workflow management"},
			Focus:        "Project structure, agent capabilities, workflow coordination",
			Context:      "Project structure and the capabilities of every specialist",
		},
	}
}

// DefaultRules returns the built-in routing rule set.
func DefaultRules() RuleSet {
	return RuleSet{
		Version: 1,
		Rules: []Rule{
			{
				Profile:  "data-analyzer",
				Keywords: []string{"data", "excel", "csv", "constraint", "analysis", "validation", "quality"},
				Patterns: []string{`analyze.*data`, `process.*excel`, `validate.*constraint`, `data.*quality`},
			},
			{
				Profile:  "dashboard-developer",
				Keywords: []string{"streamlit", "dashboard", "ui", "interface", "visualization", "chart", "plot"},
				Patterns: []string{`build.*dashboard`, `create.*interface`, `streamlit.*app`, `visualiz`},
			},
			{
				Profile:  "optimization-expert",
				Keywords: []string{"optimization", "constraint", "algorithm", "mathematical", "model", "solver"},
				Patterns: []string{`optim`, `constraint.*problem`, `mathematical.*model`, `algorithm`},
			},
			{
				Profile:  "data-science-researcher",
				Keywords: []string{"research", "statistical", "modeling", "hypothesis", "bayesian", "experimental", "academic"},
				Patterns: []string{`research.*problem`, `statistical.*model`, `hypothesis.*test`, `experimental.*design`, `literature.*review`, `advanced.*model`},
			},
			{
				Profile:  "ml-concept-tester",
				Keywords: []string{"machine learning", "deep learning", "neural network", "ml", "dl", "ai", "genai", "llm", "experiment"},
				Patterns: []string{`machine.*learning`, `deep.*learning`, `neural.*network`, `test.*model`, `ml.*experiment`, `ai.*concept`, `llm.*test`},
			},
			{
				Profile:  "strategic-planner",
				Keywords: []string{"plan", "strategy", "roadmap", "schedule", "timeline", "reflection", "iteration", "memory"},
				Patterns: []string{`create.*plan`, `develop.*strategy`, `plan.*project`, `reflect.*iteration`, `track.*progress`, `strategic.*plan`},
			},
			{
				Profile:  "meta-orchestrator",
				Keywords: []string{"coordinate", "manage", "orchestrate", "workflow", "complex"},
				Patterns: []string{`coordinate.*agents`, `complex.*task`, `multi.*step`},
			},
		},
	}
}
