package types

// Room:
//   roomId: string
//   phase: "board" | "acting" | "waiting_for_host" | "result" | "summary"
//   teams: { id, name, score, color }[]
//   currentTeamIndex: number
//   cards: { id: "c<n>", word, status: "hidden" | "active" | "guessed" | "skipped" }[]
//   activeCardId: string | null
//   actorId: string | null
//   roundEndsAt: number | null   // epoch ms, written by the device that picked
//   lastResult: "guessed" | "skipped" | null
//   category: string
//   roundDuration: number         // seconds
//   hostKeyHash: string           // argon2id hash of the creating device's host key
