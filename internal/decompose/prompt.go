package decompose

// decompositionPrompt is the prompt template for request decomposition.
const decompositionPrompt = `Break this request into a plan of interdependent tasks for a virtual workforce. Each task is handled by one specialist worker.

Request:
%s

Return ONLY a JSON array of tasks with this exact structure (no other text):
[
  {
    "title": "Short task title",
    "description": "Detailed task description",
    "domain": "research|copywriting|design|engineering|marketing|analysis|operations",
    "required_agent": "capability tag, e.g. seo-researcher, copywriter, data-analyst",
    "depends_on": ["title of dependency 1"],
    "idempotent": true
  }
]

Guidelines:
- Tasks should be as independent as possible to allow parallel execution
- Only add dependencies when one task genuinely consumes another's output
- Use empty array [] for depends_on if there are no dependencies
- Set "idempotent": false for tasks with external side effects that must not be repeated (sending, publishing, purchasing)
- domain categorizes the work; required_agent names the capability needed to do it`
