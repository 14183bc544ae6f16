package model

// Project is an entry of the Sonar project index.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// Component is a unit of measurement: a project (qualifier TRK) or a file.
type Component struct {
	ID        string    `json:"id"`
	Key       string    `json:"key" validate:"required"`
	Name      string    `json:"name"`
	Qualifier string    `json:"qualifier"`
	Measures  []Measure `json:"measures,omitempty"`
}

// Project converts a project-level component to a Project.
func (c Component) Project() Project {
	return Project{ID: c.ID, Key: c.Key, Name: c.Name}
}

type Metric struct {
	ID          string `json:"id"`
	Key         string `json:"key" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Domain      string `json:"domain"`
	Type        string `json:"type" validate:"required"`
	Direction   int    `json:"direction"`
	Qualitative bool   `json:"qualitative"`
	Hidden      bool   `json:"hidden"`
	Custom      bool   `json:"custom"`
}

// Measure is a raw metric value as reported by Sonar. Value stays a string
// because Sonar reports every kind (numbers, ratings, levels) as text.
type Measure struct {
	Metric string `json:"metric"`
	Value  string `json:"value"`
}

type Paging struct {
	PageIndex int `json:"pageIndex"`
	PageSize  int `json:"pageSize"`
	Total     int `json:"total"`
}

// HasMore reports whether pages after this one exist.
func (p Paging) HasMore() bool {
	return p.PageIndex > 0 && p.PageSize > 0 && p.PageIndex*p.PageSize < p.Total
}

type ComponentPage struct {
	Paging     Paging      `json:"paging"`
	Components []Component `json:"components"`
}

func (p ComponentPage) HasMore() bool {
	return p.Paging.HasMore()
}

// MetricPage is the answer of /api/metrics/search, which reports its paging
// flat rather than in a paging object.
type MetricPage struct {
	Metrics  []Metric `json:"metrics"`
	Total    int      `json:"total"`
	Page     int      `json:"p"`
	PageSize int      `json:"ps"`
}

func (p MetricPage) HasMore() bool {
	return Paging{PageIndex: p.Page, PageSize: p.PageSize, Total: p.Total}.HasMore()
}

type ComponentMeasures struct {
	Component Component `json:"component"`
}

type AuthValidation struct {
	Valid bool `json:"valid"`
}
