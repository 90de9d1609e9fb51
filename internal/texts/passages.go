package texts

var passages = map[Difficulty][]string{
	Easy: {
		"The quick brown fox jumps over the lazy dog near the old barn.",
		"She sells sea shells by the sea shore on a warm summer day.",
		"A good book can take you to places you have never been before.",
		"The sun rose slowly over the hills and painted the sky orange.",
		"He put the keys on the table and walked out into the rain.",
		"Every morning the baker fills the street with the smell of bread.",
	},
	Medium: {
		"Typing quickly is a skill that improves with deliberate practice; focus on accuracy first, and speed will follow naturally over time.",
		"The engineer reviewed the pull request carefully, noting that a single misplaced character could bring the whole deployment down.",
		"Somewhere between the first keystroke and the last, the words stop being letters and become a rhythm your hands already know.",
		"Rain hammered the windows of the small cafe while two strangers argued quietly about which decade produced the best music.",
		"Version control is a time machine for code: every commit is a moment you can return to when the present goes wrong.",
		"The museum's newest exhibit featured clockwork birds that sang precisely at noon, delighting children and puzzling historians.",
	},
	Hard: {
		"Quantum entanglement defies classical intuition: measuring one particle's spin instantaneously constrains its distant partner's, yet no usable signal travels between them.",
		"\"Brevity,\" the editor snapped, \"is not the absence of words; it's the presence of exactly the right ones\" — then she struck out half the paragraph.",
		"The API returned HTTP 503 intermittently; engineers traced it to a misconfigured load-balancer draining 40% of upstream connections during peak traffic.",
		"Juxtaposing baroque ornamentation with brutalist concrete, the architect's design polarized critics: half called it visionary, half called it vandalism.",
		"In 1969, the ARPANET's first transmitted message was meant to be \"LOGIN\"; the system crashed after \"LO\" — an accidentally profound greeting.",
		"Deterministic convergence requires that both replicas, given identical message sequences, reach identical states — a property easier to state than to guarantee.",
	},
}
