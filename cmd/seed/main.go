// Command seed fills a development database with fake members and activity.
package main

import (
	"flag"
	"log"

	"tdh/internal/config"
	"tdh/internal/database"
	"tdh/internal/seed"
)

func main() {
	def := seed.DefaultOptions()
	members := flag.Int("members", def.Members, "approved members to create")
	pending := flag.Int("pending", def.PendingMembers, "pending members to create")
	posts := flag.Int("posts", def.PostsPerMember, "posts per approved member")
	comments := flag.Int("comments", def.CommentsPerPost, "comments per post")
	likes := flag.Int("like-percent", def.LikePercent, "chance (0-100) that a member likes a post")
	clean := flag.Bool("clean", false, "remove existing members and content first (administrators are kept)")
	randSeed := flag.Int64("rand-seed", 0, "seed for reproducible output")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	opts := def
	opts.Members = *members
	opts.PendingMembers = *pending
	opts.PostsPerMember = *posts
	opts.CommentsPerPost = *comments
	opts.LikePercent = *likes
	opts.Clean = *clean
	opts.RandSeed = *randSeed

	res, err := seed.NewSeeder(db, opts).Run()
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d members (%d pending), %d posts, %d comments, %d likes",
		res.Members+res.Pending, res.Pending, res.Posts, res.Comments, res.Likes)
	log.Printf("All seeded members use the password %q", seed.DefaultPassword)
}
