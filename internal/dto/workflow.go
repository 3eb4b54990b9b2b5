package dto

// WorkflowDocument is the on-disk shape of a workflow.
// It uses "mapstructure" tags so that sources with numeric ids decode through a weakly typed pass.
type WorkflowDocument struct {
	WorkflowID   string         `json:"workflowId,omitempty" yaml:"workflowId,omitempty" mapstructure:"workflowId"`
	WorkflowName string         `json:"workflowName,omitempty" yaml:"workflowName,omitempty" mapstructure:"workflowName"`
	StartNode    string         `json:"startNode" yaml:"startNode" mapstructure:"startNode" validate:"required"`
	Nodes        []NodeDocument `json:"nodes" yaml:"nodes" mapstructure:"nodes" validate:"required,min=1,dive"`
}

type NodeDocument struct {
	ID           string           `json:"id" yaml:"id" mapstructure:"id" validate:"required"`
	Question     string           `json:"question" yaml:"question" mapstructure:"question"`
	QuestionType string           `json:"questionType,omitempty" yaml:"questionType,omitempty" mapstructure:"questionType"`
	Answers      []AnswerDocument `json:"answers" yaml:"answers" mapstructure:"answers" validate:"dive"`
}

type AnswerDocument struct {
	Response string `json:"response" yaml:"response" mapstructure:"response" validate:"required"`
	NextNode string `json:"nextNode,omitempty" yaml:"nextNode,omitempty" mapstructure:"nextNode"`
	System   string `json:"system,omitempty" yaml:"system,omitempty" mapstructure:"system"`
}
