package workflows

import (
	"strings"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/llm"
	"github.com/randalmurphal/stategraph/pkg/stategraph/template"
)

// Review field names.
const (
	TopicField    = "linkedin_topic"
	PostsField    = "generated_post"
	FeedbackField = "human_feedback"
	FinalField    = "final_post"
)

// Review node names.
const (
	ModelNode = "model"
	HumanNode = "human_node"
	EndNode   = "end_node"
)

// DoneFeedback finishes the review loop.
const DoneFeedback = "done"

var postPrompt = template.MustParse(`LinkedIn Topic: ${topic}
Human Feedback: ${feedback}

Generate a structured and well-written LinkedIn post based on the given topic.

Consider previous human feedback to refine the response.`)

// ReviewRequest is the interrupt payload shown to the reviewer.
type ReviewRequest struct {
	GeneratedPost string `json:"generated_post"`
	Message       string `json:"message"`
}

// ReviewSchema declares the topic (overwrite), the generated posts and the
// feedback (append), and the final post (overwrite).
func ReviewSchema() *stategraph.Schema {
	return stategraph.NewSchema(
		stategraph.NewField[string](TopicField, stategraph.Overwrite),
		stategraph.NewField[[]string](PostsField, stategraph.Append),
		stategraph.NewField[[]string](FeedbackField, stategraph.Append),
		stategraph.NewField[string](FinalField, stategraph.Overwrite),
	)
}

// Review builds the human-in-the-loop post writer. model drafts a post,
// human_node interrupts for feedback and either loops back to model or,
// on "done", goes to end_node. It needs a checkpoint store and a thread ID.
func Review(client llm.Client, opts ...Option) (*stategraph.CompiledGraph, error) {
	o := newOptions(opts)

	model := func(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
		feedback := "No feedback yet"
		if fb := stategraph.Value[[]string](s, FeedbackField); len(fb) > 0 {
			feedback = fb[len(fb)-1]
		}
		prompt, err := postPrompt.Render(map[string]any{
			"topic":    stategraph.Value[string](s, TopicField),
			"feedback": feedback,
		})
		if err != nil {
			return nil, err
		}

		resp, err := o.complete(ctx, client, llm.CompletionRequest{
			Messages: []llm.Message{
				llm.SystemMessage("You are an expert LinkedIn content writer"),
				llm.UserMessage(prompt),
			},
		})
		if err != nil {
			return nil, err
		}
		return stategraph.Update{PostsField: resp.Content}, nil
	}

	human := func(ctx stategraph.Context, s stategraph.State) (stategraph.Command, error) {
		posts := stategraph.Value[[]string](s, PostsField)
		var latest string
		if len(posts) > 0 {
			latest = posts[len(posts)-1]
		}

		feedback, err := stategraph.InterruptAs[string](ctx, ReviewRequest{
			GeneratedPost: latest,
			Message:       "Provide feedback or type 'done' to finish",
		})
		if err != nil {
			return stategraph.Command{}, err
		}

		if strings.EqualFold(strings.TrimSpace(feedback), DoneFeedback) {
			return stategraph.Command{Update: stategraph.Update{FeedbackField: "Finalised"}, Goto: EndNode}, nil
		}
		return stategraph.Command{Update: stategraph.Update{FeedbackField: feedback}, Goto: ModelNode}, nil
	}

	end := func(_ stategraph.Context, s stategraph.State) (stategraph.Update, error) {
		posts := stategraph.Value[[]string](s, PostsField)
		if len(posts) == 0 {
			return nil, nil
		}
		return stategraph.Update{FinalField: posts[len(posts)-1]}, nil
	}

	return stategraph.NewGraph(ReviewSchema()).
		AddNode(ModelNode, model).
		AddCommandNode(HumanNode, human, ModelNode, EndNode).
		AddNode(EndNode, end).
		AddEdge(ModelNode, HumanNode).
		AddEdge(EndNode, stategraph.END).
		SetEntry(ModelNode).
		Compile()
}
