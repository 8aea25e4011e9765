package tools

import "github.com/mark3labs/mcp-go/mcp"

const (
	topicHelp  = "One of vocabulary, grammar, reading, listening, culture."
	signalHelp = "Optional difficulty signal: hard, easy or neutral."
	answerHelp = "The learner's answer: a choice number, a letter or the choice text."
)

func userParam() mcp.ToolOption {
	return mcp.WithString("user_id", mcp.Required(), mcp.Description("Learner identifier."))
}

func getQuestionTool() mcp.Tool {
	return mcp.NewTool("get_question",
		mcp.WithDescription("Pick a random active question for a topic and level."),
		mcp.WithString("topic", mcp.Required(), mcp.Description(topicHelp)),
		mcp.WithNumber("level", mcp.Required(), mcp.Description("Difficulty level, 1 to 10.")),
	)
}

func nextQuestionTool() mcp.Tool {
	return mcp.NewTool("next_question",
		mcp.WithDescription("Issue the next practice question at the learner's level and remember it for submit_answer."),
		userParam(),
		mcp.WithString("topic", mcp.Description(topicHelp+" Defaults to the learner's last topic.")),
	)
}

func submitAnswerTool() mcp.Tool {
	return mcp.NewTool("submit_answer",
		mcp.WithDescription("Grade a practice answer and update the learner's level."),
		userParam(),
		mcp.WithString("answer", mcp.Required(), mcp.Description(answerHelp)),
		mcp.WithString("question_id", mcp.Description("Question being answered. Defaults to the last question from next_question.")),
		mcp.WithString("signal", mcp.Description(signalHelp)),
	)
}

func giveFeedbackTool() mcp.Tool {
	return mcp.NewTool("give_feedback",
		mcp.WithDescription("Move the learner's level with an explicit difficulty signal."),
		userParam(),
		mcp.WithString("signal", mcp.Required(), mcp.Enum("hard", "easy", "neutral")),
	)
}

func respondPromotionTool() mcp.Tool {
	return mcp.NewTool("respond_promotion",
		mcp.WithDescription("Accept or decline a pending promotion offer."),
		userParam(),
		mcp.WithBoolean("accept", mcp.Required()),
	)
}

func startAssessmentTool() mcp.Tool {
	return mcp.NewTool("start_assessment",
		mcp.WithDescription("Start a placement assessment and return its first question."),
		userParam(),
		mcp.WithString("topic", mcp.Description(topicHelp)),
	)
}

func submitAssessmentAnswerTool() mcp.Tool {
	return mcp.NewTool("submit_assessment_answer",
		mcp.WithDescription("Grade an assessment answer. Returns the next question, or the final level once the assessment ends."),
		mcp.WithString("session_id", mcp.Description("Assessment session id from start_assessment.")),
		mcp.WithString("question_id", mcp.Required()),
		mcp.WithString("answer", mcp.Required(), mcp.Description(answerHelp)),
		mcp.WithString("signal", mcp.Description(signalHelp)),
		mcp.WithString("user_id", mcp.Description("Learner identifier; lets an unknown session be recreated.")),
	)
}

func getUserStateTool() mcp.Tool {
	return mcp.NewTool("get_user_state",
		mcp.WithDescription("Read the learner's level, topic and assessment status."),
		userParam(),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func levelStatusTool() mcp.Tool {
	return mcp.NewTool("level_status",
		mcp.WithDescription("Compare the questions available at a level with those the learner has attempted."),
		userParam(),
		mcp.WithString("topic", mcp.Description(topicHelp)),
		mcp.WithNumber("level", mcp.Description("Defaults to the learner's level.")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func progressReportTool() mcp.Tool {
	return mcp.NewTool("progress_report",
		mcp.WithDescription("Summarise the learner's progress per topic with recent attempts and assessments."),
		userParam(),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}
