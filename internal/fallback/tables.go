package fallback

// Entry is one (keyword, response) row of a fallback table. Tables are
// ordered: the first keyword found in the question wins.
type Entry struct {
	// Keyword is matched case-insensitively as a substring of the question.
	Keyword string
	// Response is the canned answer returned on a match.
	Response string
}

// Table is an ordered keyword table with its generic default answer.
type Table struct {
	// Entries are tried in order.
	Entries []Entry
	// Default is returned when no entry matches and no document is available.
	Default string
}

// trainerUnavailable answers English questions when the trainer model is not
// loaded or generation failed.
var trainerUnavailable = Table{
	Entries: []Entry{
		{"push", "Perfect push-ups: Keep body straight, hands shoulder-width apart, lower controlled until chest nearly touches ground. Start with 3 sets of 8-12 reps."},
		{"squat", "Proper squats: Feet shoulder-width apart, sit back like sitting in chair, keep back straight. 3 sets of 12-20 reps for beginners."},
		{"upper body", "Upper body strength: Focus on push-ups, pull-ups, dips. Progressive overload is key. Compound movements work best."},
		{"strength", "Build strength: Start with bodyweight exercises, focus on proper form, then gradually add resistance. Consistency beats intensity."},
		{"workout", "Effective workouts: Warm-up 5-10min, compound exercises, 3 sets per exercise, finish with stretching."},
		{"muscle", "Muscle building: Progressive overload, adequate protein, sufficient recovery. Train each muscle group 2-3 times per week."},
	},
	Default: "Focus on bodyweight exercises like push-ups, squats, planks. Prioritize form over quantity. Progressive improvement and consistency are essential.",
}

// trainerIncoherent answers English questions when the trainer model produced
// unusable text.
var trainerIncoherent = Table{
	Entries: []Entry{
		{"upper body", "Focus on compound exercises like push-ups, pull-ups, and dips. Start with bodyweight movements and progress gradually."},
		{"strength", "Build strength through progressive overload. Start with basic exercises, focus on proper form, then gradually increase intensity."},
		{"muscle", "Muscle building requires proper exercise form, adequate protein intake, and sufficient recovery time."},
		{"workout", "An effective workout includes warm-up, compound exercises, and cool-down. Aim for 45-60 minutes per session."},
		{"exercise", "Choose exercises that match your fitness level. Start with bodyweight movements before adding weights."},
		{"squat", "Proper squat form: feet shoulder-width apart, sit back like sitting in chair, keep back straight."},
		{"push", "Perfect push-ups: hands shoulder-width apart, body straight, controlled movement down and up."},
		{"cardio", "Effective cardio includes walking, jogging, cycling, or swimming. Start with 20-30 minutes, 3-4 times per week."},
		{"nutrition", "Post-workout nutrition: consume protein within 30 minutes, stay hydrated, eat balanced meals."},
		{"recovery", "Recovery is crucial: get 7-9 hours sleep, stretch post-workout, allow rest days between intense sessions."},
	},
	Default: "Focus on progressive training with proper form. Start with basic exercises and gradually increase intensity.",
}

// coachAll answers French questions for every fallback reason.
var coachAll = Table{
	Entries: []Entry{
		{"pompes", "🏋️ **Pompes parfaites** : Position planche, mains largeur d'épaules, corps aligné. Descendre contrôlée jusqu'à frôler le sol. 3 séries de 8-12 répétitions."},
		{"squat", "🏋️ **Squats efficaces** : Pieds largeur d'épaules, descendre comme pour s'asseoir, genoux alignés. 3 séries de 12-20 répétitions."},
		{"cardio", "❤️ **Cardio débutant** : Marche rapide 30-45min, 3-4x/semaine. Progression graduelle vers alternance marche/course."},
		{"nutrition", "🥗 **Nutrition sportive** : Hydratation 2-3L/jour, protéines 20-25g post-effort, alimentation équilibrée."},
	},
	Default: "🏋️ **Conseils fitness** : Échauffement 5-10min, exercices au poids du corps, 3 séries selon niveau, récupération avec étirements. Progression graduelle essentielle ! 💪",
}
