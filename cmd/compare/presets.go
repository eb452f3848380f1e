package main

// preset is a fixed comparison task.
type preset struct {
	Title  string
	Task   string
	Prompt string
}

var presets = map[string]preset{
	"devops": {
		Title: "DEVOPS COMPARISON - CI/CD PIPELINE GENERATION",
		Task:  "CI/CD Pipeline Generation",
		Prompt: `Create a GitHub Actions CI/CD pipeline (YAML) for a Python web application with the following requirements:

Application Stack:
- Python 3.11 with FastAPI
- PostgreSQL database
- Redis for caching
- Docker for containerization

Pipeline Requirements:
1. Trigger on push to main and pull requests
2. Run on Ubuntu latest
3. Set up Python environment with dependencies
4. Run linting (flake8, black)
5. Run tests with pytest and generate coverage report
6. Build Docker image
7. Push to Docker Hub (on main branch only)
8. Deploy to production (main branch only)
9. Include environment variables and secrets management
10. Add caching for dependencies
11. Parallel jobs where possible
12. Notify on failure

Include proper error handling and best practices.`,
	},
	"appdev": {
		Title: "APP DEVELOPMENT COMPARISON - PYTHON FUNCTION GENERATION",
		Task:  "Python Function Generation",
		Prompt: `Create a Python function that:
1. Accepts a list of user dictionaries with keys: name, email, age, status
2. Validates email format using regex
3. Filters users by status (active/inactive)
4. Returns sorted list by age in descending order
5. Includes proper error handling and type hints`,
	},
	"analytics": {
		Title: "DATA ANALYTICS COMPARISON - POSTGRESQL QUERY GENERATION",
		Task:  "PostgreSQL Query Generation",
		Prompt: `Write a PostgreSQL query for the following scenario:

Tables:
- users (id, name, email, created_at, status)
- orders (id, user_id, total_amount, order_date, status)
- order_items (id, order_id, product_id, quantity, price)
- products (id, name, category, price)

Requirements:
1. Get top 10 customers by total purchase amount in 2024
2. Include their total number of orders
3. Show average order value per customer
4. Filter only 'active' users with 'completed' orders
5. Include the most purchased product category for each customer
6. Use window functions and CTEs for optimization
7. Add proper indexing suggestions in comments`,
	},
}
